package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
)

var ErrDimensionMismatch = errors.New("embedding dimension does not match collection")

// Metadata is the flat key/value payload stored next to a vector
type Metadata map[string]any

type record struct {
	ID        string    `json:"id"`
	Document  string    `json:"document"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	Embedding []float32 `json:"embedding"`
}

// Match is one query hit. Distance is the squared euclidean distance to the query vector.
type Match struct {
	ID       string
	Document string
	Metadata Metadata
	Distance float32
}

type Collection struct {
	store *Store
	name  string
}

func (c *Collection) Name() string {
	return c.name
}

// Upsert writes records by id, replacing existing ones. All slices must have the same length
// and all embeddings the dimension of the collection.
func (c *Collection) Upsert(ctx context.Context, ids, documents []string, metadatas []Metadata, embeddings [][]float32) error {
	n := len(ids)
	if len(documents) != n || len(metadatas) != n || len(embeddings) != n {
		return fmt.Errorf("upsert length mismatch: ids=%d documents=%d metadatas=%d embeddings=%d",
			n, len(documents), len(metadatas), len(embeddings))
	}
	if n == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.store.db.Update(func(txn *badger.Txn) error {
		info, err := c.store.collectionInfo(txn, c.name)
		if err != nil {
			return err
		}
		if info == nil {
			info = &collectionInfo{Dimension: len(embeddings[0])}
			data, err := json.Marshal(info)
			if err != nil {
				return err
			}
			if err := txn.Set(collectionKey(c.name), data); err != nil {
				return err
			}
		}

		for i, id := range ids {
			if id == "" {
				return fmt.Errorf("record %d has an empty id", i)
			}
			if len(embeddings[i]) != info.Dimension {
				return fmt.Errorf("%w: record %s has %d, collection has %d",
					ErrDimensionMismatch, id, len(embeddings[i]), info.Dimension)
			}

			data, err := json.Marshal(record{
				ID:        id,
				Document:  documents[i],
				Metadata:  metadatas[i],
				Embedding: embeddings[i],
			})
			if err != nil {
				return err
			}
			if err := txn.Set(recordKey(c.name, id), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", c.name, err)
	}
	return nil
}

// Get returns the record with id, or nil when absent
func (c *Collection) Get(ctx context.Context, id string) (*Match, error) {
	var m *Match
	err := c.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(c.name, id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var r record
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			m = &Match{ID: r.ID, Document: r.Document, Metadata: r.Metadata}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from %s: %w", id, c.name, err)
	}
	return m, nil
}

// Query returns the k records closest to embedding, nearest first. Ties keep id order.
func (c *Collection) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	var matches []Match
	err := c.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordKeyPrefix(c.name)
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var r record
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return err
			}
			if len(r.Embedding) != len(embedding) {
				return fmt.Errorf("%w: query has %d, record %s has %d",
					ErrDimensionMismatch, len(embedding), r.ID, len(r.Embedding))
			}

			matches = append(matches, Match{
				ID:       r.ID,
				Document: r.Document,
				Metadata: r.Metadata,
				Distance: squaredL2(embedding, r.Embedding),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of records in the collection
func (c *Collection) Count(ctx context.Context) (int, error) {
	count := 0
	err := c.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordKeyPrefix(c.name)
		opts.PrefetchValues = false
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.name, err)
	}
	return count, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
