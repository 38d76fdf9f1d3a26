package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edunav/internal/backend"
	"edunav/internal/config"
	"edunav/internal/domain"
)

type stubBackend struct {
	name       string
	searchFunc func(ctx context.Context, query string, limit int) ([]domain.Snippet, error)
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Search(ctx context.Context, query string, limit int) ([]domain.Snippet, error) {
	return s.searchFunc(ctx, query, limit)
}

func snippets(texts ...string) []domain.Snippet {
	out := make([]domain.Snippet, len(texts))
	for i, t := range texts {
		out[i] = domain.Snippet{Text: t}
	}
	return out
}

func buildRegistry(t *testing.T, stubs ...*stubBackend) *backend.Registry {
	t.Helper()
	sources := make([]config.Source, len(stubs))
	for i, s := range stubs {
		sources[i] = config.Source{Name: s.name, Type: "local", Path: s.name}
	}
	open := func(ctx context.Context, src config.Source) (domain.Backend, error) {
		for _, s := range stubs {
			if s.name == src.Name {
				return s, nil
			}
		}
		return nil, fmt.Errorf("no stub for %s", src.Name)
	}
	return backend.Build(context.Background(), sources, open, zerolog.Nop())
}

func newAggregator(limit, budget int) *Aggregator {
	return New(config.RetrievalConfig{PerSourceLimit: limit, SnippetCharBudget: budget}, zerolog.Nop())
}

func TestAssembleOrdersSourcesThenRank(t *testing.T) {
	reg := buildRegistry(t,
		&stubBackend{name: "youtube", searchFunc: func(context.Context, string, int) ([]domain.Snippet, error) {
			return snippets("clip one", "clip two"), nil
		}},
		&stubBackend{name: "website", searchFunc: func(context.Context, string, int) ([]domain.Snippet, error) {
			return snippets("page one"), nil
		}},
	)
	agg, err := newAggregator(4, 2000).Assemble(context.Background(), reg, "q")
	require.NoError(t, err)

	want := "Source: youtube\nclip one\nSource: youtube\nclip two\nSource: website\npage one"
	assert.Equal(t, want, agg.Text, "blocks must follow registry order, then rank order")
	assert.Equal(t, 3, agg.Snippets)
	assert.False(t, agg.Empty())
}

func TestAssembleTruncatesEachSnippet(t *testing.T) {
	long := strings.Repeat("é", 2500)
	reg := buildRegistry(t,
		&stubBackend{name: "pdf", searchFunc: func(context.Context, string, int) ([]domain.Snippet, error) {
			return snippets(long), nil
		}},
	)
	agg, err := newAggregator(4, 2000).Assemble(context.Background(), reg, "q")
	require.NoError(t, err)

	body := strings.TrimPrefix(agg.Text, "Source: pdf\n")
	assert.Equal(t, 2000, utf8.RuneCountInString(body))
	assert.True(t, utf8.ValidString(body), "truncation must not split a rune")
}

func TestTruncateIdempotent(t *testing.T) {
	s := strings.Repeat("日本語テキスト", 500)
	once := truncate(s, 2000)
	twice := truncate(once, 2000)
	assert.Equal(t, once, twice)
	assert.Equal(t, 2000, utf8.RuneCountInString(once))
	assert.True(t, utf8.ValidString(once))

	short := "short"
	assert.Equal(t, short, truncate(short, 2000))
}

func TestAssembleIsolatesFailingSource(t *testing.T) {
	reg := buildRegistry(t,
		&stubBackend{name: "youtube", searchFunc: func(context.Context, string, int) ([]domain.Snippet, error) {
			return snippets("clip"), nil
		}},
		&stubBackend{name: "website", searchFunc: func(context.Context, string, int) ([]domain.Snippet, error) {
			return nil, errors.New("connection refused")
		}},
		&stubBackend{name: "pptx", searchFunc: func(context.Context, string, int) ([]domain.Snippet, error) {
			return snippets("slide"), nil
		}},
	)
	agg, err := newAggregator(4, 2000).Assemble(context.Background(), reg, "q")
	require.NoError(t, err)

	assert.Contains(t, agg.Text, "Source: youtube\nclip")
	assert.Contains(t, agg.Text, "Source: pptx\nslide")
	assert.NotContains(t, agg.Text, "website")
	require.Len(t, agg.Errors, 1)
	assert.Equal(t, "website", agg.Errors[0].Source)
	assert.False(t, agg.Empty())
}

func TestAssembleEmptyResultSourcesContributeNothing(t *testing.T) {
	reg := buildRegistry(t,
		&stubBackend{name: "youtube", searchFunc: func(context.Context, string, int) ([]domain.Snippet, error) {
			return snippets("clip about neural nets"), nil
		}},
		&stubBackend{name: "website", searchFunc: func(context.Context, string, int) ([]domain.Snippet, error) {
			return nil, nil
		}},
	)
	agg, err := newAggregator(4, 2000).Assemble(context.Background(), reg, "What is a neural net?")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(agg.Text, "Source: youtube"))
	assert.NotContains(t, agg.Text, "Source: website", "empty sources must not leave an empty labeled block")
	assert.Equal(t, 1, agg.Snippets)
}

func TestAssembleNoBackends(t *testing.T) {
	reg := buildRegistry(t)
	agg, err := newAggregator(4, 2000).Assemble(context.Background(), reg, "anything")
	require.NoError(t, err)
	assert.True(t, agg.Empty())
	assert.Empty(t, agg.Errors)
}

func TestAssembleAllSourcesEmpty(t *testing.T) {
	reg := buildRegistry(t,
		&stubBackend{name: "a", searchFunc: func(context.Context, string, int) ([]domain.Snippet, error) {
			return nil, nil
		}},
		&stubBackend{name: "b", searchFunc: func(context.Context, string, int) ([]domain.Snippet, error) {
			return []domain.Snippet{}, nil
		}},
	)
	agg, err := newAggregator(4, 2000).Assemble(context.Background(), reg, "q")
	require.NoError(t, err)
	assert.True(t, agg.Empty())
}

func TestAssembleCancelledContext(t *testing.T) {
	reg := buildRegistry(t,
		&stubBackend{name: "a", searchFunc: func(context.Context, string, int) ([]domain.Snippet, error) {
			return snippets("x"), nil
		}},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newAggregator(4, 2000).Assemble(ctx, reg, "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssembleQueriesBackendsConcurrently(t *testing.T) {
	slow := func(context.Context, string, int) ([]domain.Snippet, error) {
		time.Sleep(200 * time.Millisecond)
		return snippets("x"), nil
	}
	reg := buildRegistry(t,
		&stubBackend{name: "a", searchFunc: slow},
		&stubBackend{name: "b", searchFunc: slow},
	)
	start := time.Now()
	_, err := newAggregator(4, 2000).Assemble(context.Background(), reg, "q")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 380*time.Millisecond, "backends should be queried in parallel")
}

func TestAssemblePassesLimitToBackends(t *testing.T) {
	var got int
	reg := buildRegistry(t,
		&stubBackend{name: "a", searchFunc: func(_ context.Context, _ string, limit int) ([]domain.Snippet, error) {
			got = limit
			return nil, nil
		}},
	)
	_, err := newAggregator(7, 2000).Assemble(context.Background(), reg, "q")
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}
