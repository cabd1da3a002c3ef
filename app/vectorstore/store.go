package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const (
	collectionPrefix = "col/"
	recordPrefix     = "vec/"
)

// Store is a persistent set of named vector collections on top of BadgerDB
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

// Open opens the store in dir, creating it when missing. inMemory ignores dir.
func Open(dir string, inMemory bool) (*Store, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create vector store directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}

	logger := slog.Default().With("component", "vectorstore")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Collection returns a handle to the named collection. The collection is created on first upsert.
func (s *Store) Collection(name string) (*Collection, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	return &Collection{store: s, name: name}, nil
}

// ListCollections returns the names of all collections that hold at least one upsert
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(collectionPrefix)
		opts.PrefetchValues = false
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			names = append(names, strings.TrimPrefix(string(iter.Item().Key()), collectionPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// DropCollection removes the collection and every record in it
func (s *Store) DropCollection(name string) error {
	if err := s.db.DropPrefix(recordKeyPrefix(name)); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(collectionKey(name))
	})
	if err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	s.logger.Info("Collection dropped", "collection", name)
	return nil
}

// DropAll removes every collection
func (s *Store) DropAll() error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("failed to drop vector store: %w", err)
	}
	s.logger.Info("Vector store dropped")
	return nil
}

type collectionInfo struct {
	Dimension int `json:"dimension"`
}

func (s *Store) collectionInfo(txn *badger.Txn, name string) (*collectionInfo, error) {
	item, err := txn.Get(collectionKey(name))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var info collectionInfo
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func collectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

func recordKeyPrefix(name string) []byte {
	return []byte(recordPrefix + name + "/")
}

func recordKey(name, id string) []byte {
	return []byte(recordPrefix + name + "/" + id)
}
