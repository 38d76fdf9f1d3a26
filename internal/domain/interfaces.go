package domain

import "context"

// Snippet is a single retrieved unit of text from one source.
type Snippet struct {
	Source   string
	Text     string
	Metadata map[string]string
	Score    float64
}

// Backend answers similarity queries against one pre-built index.
// Implementations must be safe for concurrent use; the registry is
// shared read-only across question cycles.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Snippet, error)
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Model() string
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Generator produces an answer from assembled context and the user's question.
type Generator interface {
	Generate(ctx context.Context, contextText, question string) (string, error)
}
