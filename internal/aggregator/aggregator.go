package aggregator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"edunav/internal/backend"
	"edunav/internal/config"
	"edunav/internal/domain"
)

// SourceError records one live backend that failed during a query. The
// failure drops only that source's contribution for the current cycle.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("Error retrieving from %s: %v", e.Source, e.Err)
}
func (e SourceError) Unwrap() error { return e.Err }

// AggregatedContext is the labeled concatenation of snippets from all
// live backends for one question. Built fresh per question, never reused.
type AggregatedContext struct {
	Text     string
	Snippets int
	Errors   []SourceError
}

// Empty reports whether no usable context was assembled. Callers must
// not proceed to generation when it returns true.
func (c *AggregatedContext) Empty() bool {
	return strings.TrimSpace(c.Text) == ""
}

// Aggregator fans a query out to every live backend and assembles the
// bounded context blob.
type Aggregator struct {
	limit   int
	budget  int
	timeout time.Duration
	log     zerolog.Logger
}

func New(cfg config.RetrievalConfig, log zerolog.Logger) *Aggregator {
	limit := cfg.PerSourceLimit
	if limit <= 0 {
		limit = 4
	}
	budget := cfg.SnippetCharBudget
	if budget <= 0 {
		budget = 2000
	}
	return &Aggregator{
		limit:   limit,
		budget:  budget,
		timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		log:     log.With().Str("component", "aggregator").Logger(),
	}
}

// Assemble queries every backend concurrently and concatenates the
// results in registry order, then backend rank order. Each snippet is
// truncated to the per-snippet character budget and labeled with its
// source. Per-source failures are recorded and skipped; the returned
// error is non-nil only when the whole cycle was cancelled or timed out.
func (a *Aggregator) Assemble(ctx context.Context, reg *backend.Registry, query string) (*AggregatedContext, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	names := reg.Names()
	results := make([][]domain.Snippet, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		b, ok := reg.Get(name)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, b domain.Backend) {
			defer wg.Done()
			snippets, err := b.Search(ctx, query, a.limit)
			results[i], errs[i] = snippets, err
		}(i, b)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg := &AggregatedContext{}
	var blocks []string
	for i, name := range names {
		if errs[i] != nil {
			agg.Errors = append(agg.Errors, SourceError{Source: name, Err: errs[i]})
			a.log.Warn().Str("source", name).Err(errs[i]).Msg("retrieval failed")
			continue
		}
		for _, snip := range results[i] {
			blocks = append(blocks, fmt.Sprintf("Source: %s\n%s", name, truncate(snip.Text, a.budget)))
			agg.Snippets++
		}
	}
	agg.Text = strings.Join(blocks, "\n")
	a.log.Debug().
		Int("sources", len(names)).
		Int("snippets", agg.Snippets).
		Int("chars", len(agg.Text)).
		Int("failed_sources", len(agg.Errors)).
		Msg("assembled context")
	return agg, nil
}

// truncate keeps the first limit code points, never splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
