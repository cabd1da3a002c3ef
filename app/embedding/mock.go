package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

var _ Embedder = (*MockEmbedder)(nil)

// MockEmbedder produces deterministic unit vectors from an FNV hash of the text.
// Used by tests and for offline runs without credentials.
type MockEmbedder struct {
	// EmbedTextsFunc replaces the default behavior when set
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	model string
	dim   int

	mu        sync.Mutex
	callCount int
}

func NewMockEmbedder(model string, dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 8
	}
	return &MockEmbedder{model: model, dim: dim}
}

func (m *MockEmbedder) Model() string {
	return m.model
}

func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = DeterministicVector(text, m.dim)
	}
	return vectors, nil
}

func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// CallCount returns how many EmbedTexts/EmbedText calls were made
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// DeterministicVector returns a unit-length vector derived from text
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	var sumSquares float64
	for i := range vector {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%1000)/1000.0 + 0.001
		sumSquares += float64(vector[i]) * float64(vector[i])
	}

	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] *= norm
	}
	return vector
}
