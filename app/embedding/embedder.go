package embedding

import (
	"context"
	"errors"
)

const (
	DefaultModel     = "text-embedding-3-small"
	DefaultBatchSize = 32
)

var ErrMissingCredentials = errors.New("OPENAI_API_KEY is required to generate OpenAI embeddings")

// Embedder turns texts into vectors. Implementations return exactly one vector per input text
// in input order, or an error.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Model() string
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int // 0 keeps the model default
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingCredentials
	}
	if c.Dimensions < 0 {
		return errors.New("embedding dimensions must be non-negative")
	}
	return nil
}
