package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lysyi3m/truth-news/app/content"
)

const (
	DefaultTargetTokens  = 420
	DefaultOverlapTokens = 60
)

var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

var (
	tokenPattern     = regexp.MustCompile(`[\p{L}\p{N}\p{M}_]+|[^\p{L}\p{N}\p{M}_\s]`)
	spaceBeforePunct = regexp.MustCompile(`\s+([,.;:!?])`)
)

// Window is a half-open token range [Start, End)
type Window struct {
	Start int
	End   int
}

type Chunk struct {
	Index      int
	Text       string
	Hash       string
	TokenCount int
}

// Chunker splits text into overlapping token windows
type Chunker struct {
	targetTokens  int
	overlapTokens int
}

// New validates the window parameters: target must be positive and overlap in [0, target)
func New(targetTokens, overlapTokens int) (*Chunker, error) {
	if targetTokens <= 0 {
		return nil, fmt.Errorf("%w: target_tokens must be > 0, got %d", ErrInvalidChunkConfig, targetTokens)
	}
	if overlapTokens < 0 || overlapTokens >= targetTokens {
		return nil, fmt.Errorf("%w: overlap_tokens must be in [0, %d), got %d", ErrInvalidChunkConfig, targetTokens, overlapTokens)
	}
	return &Chunker{targetTokens: targetTokens, overlapTokens: overlapTokens}, nil
}

func (c *Chunker) TargetTokens() int  { return c.targetTokens }
func (c *Chunker) OverlapTokens() int { return c.overlapTokens }

// Windows returns the windows covering n tokens. Each step advances by target-overlap and
// the last window always ends at n.
func (c *Chunker) Windows(n int) []Window {
	if n <= 0 {
		return nil
	}

	step := c.targetTokens - c.overlapTokens
	var windows []Window
	for start := 0; ; start += step {
		end := min(start+c.targetTokens, n)
		windows = append(windows, Window{Start: start, End: end})
		if end == n {
			break
		}
	}
	return windows
}

// Split tokenizes text and returns one chunk per window, hashed against url
func (c *Chunker) Split(url, text string) []Chunk {
	tokens := Tokenize(text)
	windows := c.Windows(len(tokens))

	chunks := make([]Chunk, 0, len(windows))
	for i, w := range windows {
		chunkText := Detokenize(tokens[w.Start:w.End])
		chunks = append(chunks, Chunk{
			Index:      i,
			Text:       chunkText,
			Hash:       content.ChunkHash(url, i, chunkText),
			TokenCount: w.End - w.Start,
		})
	}
	return chunks
}

// Tokenize splits text into word and single punctuation tokens
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// Detokenize joins tokens with spaces and removes the space before closing punctuation
func Detokenize(tokens []string) string {
	joined := strings.Join(tokens, " ")
	return strings.TrimSpace(spaceBeforePunct.ReplaceAllString(joined, "$1"))
}
