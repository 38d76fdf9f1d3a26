package local

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"edunav/internal/domain"
)

// Backend answers similarity queries against an index loaded into memory.
// Records are immutable after Load, so the backend is safe to share
// across concurrent question cycles without locking.
type Backend struct {
	name     string
	index    *Index
	embedder domain.Embedder
	log      zerolog.Logger
}

// New wraps a loaded index as a retrieval backend. A model mismatch
// between the manifest and the embedder is logged but not rejected; the
// operator may be pointing a compatible model at an older index.
func New(name string, idx *Index, embedder domain.Embedder, log zerolog.Logger) *Backend {
	l := log.With().Str("component", "backend").Str("source", name).Logger()
	if idx.Manifest.Model != "" && idx.Manifest.Model != embedder.Model() {
		l.Warn().
			Str("index_model", idx.Manifest.Model).
			Str("embedder_model", embedder.Model()).
			Msg("embedding model differs from the one that built the index")
	}
	return &Backend{name: name, index: idx, embedder: embedder, log: l}
}

func (b *Backend) Name() string { return b.name }

// Search embeds the query and scores every record by cosine similarity,
// returning the top results in descending score order.
func (b *Backend) Search(ctx context.Context, query string, limit int) ([]domain.Snippet, error) {
	if limit <= 0 {
		limit = 4
	}
	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != b.index.Manifest.Dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(vec), b.index.Manifest.Dimension)
	}

	records := b.index.Records
	idxs := make([]int, len(records))
	scores := make([]float64, len(records))
	for i := range records {
		idxs[i] = i
		scores[i] = cosine(records[i].Vector, vec)
	}
	sort.Slice(idxs, func(a, c int) bool { return scores[idxs[a]] > scores[idxs[c]] })

	if limit > len(idxs) {
		limit = len(idxs)
	}
	snippets := make([]domain.Snippet, 0, limit)
	for _, j := range idxs[:limit] {
		snippets = append(snippets, domain.Snippet{
			Source:   b.name,
			Text:     records[j].Text,
			Metadata: records[j].Metadata,
			Score:    scores[j],
		})
	}
	b.log.Debug().Int("results", len(snippets)).Msg("searched index")
	return snippets, nil
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
