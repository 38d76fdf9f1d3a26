package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vec []float64
	err error
}

func (s *stubEmbedder) Model() string { return "stub" }

func (s *stubEmbedder) Embed(context.Context, string) ([]float64, error) {
	return s.vec, s.err
}

func TestOpenVerifiesCollection(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("api-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": {"status": "green"}, "status": "ok"}`))
	}))
	defer srv.Close()

	cfg := Config{URL: srv.URL, APIKey: "secret", Collection: "lectures"}
	b, err := Open(context.Background(), "website", cfg, &stubEmbedder{vec: []float64{1, 0}}, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "/collections/lectures", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "website", b.Name())
}

func TestOpenMissingCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status": {"error": "not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := Config{URL: srv.URL, Collection: "ghost"}
	_, err := Open(context.Background(), "website", cfg, &stubEmbedder{vec: []float64{1, 0}}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestSearchMapsPayload(t *testing.T) {
	var searchBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/collections/lectures":
			_, _ = w.Write([]byte(`{"result": {"status": "green"}, "status": "ok"}`))
		case "/collections/lectures/points/search":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&searchBody))
			_, _ = w.Write([]byte(`{
				"result": [
					{"id": 1, "score": 0.92, "payload": {"text": "attention is all you need",
						"metadata": {"url": "https://example.com/l1", "page": "3"}}},
					{"id": 2, "score": 0.61, "payload": {"text": "positional encodings"}}
				],
				"status": "ok"
			}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := Config{URL: srv.URL, Collection: "lectures"}
	b, err := Open(context.Background(), "website", cfg, &stubEmbedder{vec: []float64{0.5, 0.5}}, zerolog.Nop())
	require.NoError(t, err)

	snippets, err := b.Search(context.Background(), "transformers", 2)
	require.NoError(t, err)

	require.Len(t, snippets, 2)
	assert.Equal(t, "website", snippets[0].Source)
	assert.Equal(t, "attention is all you need", snippets[0].Text)
	assert.Equal(t, 0.92, snippets[0].Score)
	assert.Equal(t, map[string]string{"url": "https://example.com/l1", "page": "3"}, snippets[0].Metadata)
	assert.Equal(t, "positional encodings", snippets[1].Text)
	assert.Nil(t, snippets[1].Metadata)

	assert.Equal(t, float64(2), searchBody["limit"])
	assert.Equal(t, true, searchBody["with_payload"])
	assert.Equal(t, []any{0.5, 0.5}, searchBody["vector"])
}

func TestSearchDefaultLimit(t *testing.T) {
	var searchBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/collections/lectures/points/search" {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&searchBody))
			_, _ = w.Write([]byte(`{"result": [], "status": "ok"}`))
			return
		}
		_, _ = w.Write([]byte(`{"result": {"status": "green"}, "status": "ok"}`))
	}))
	defer srv.Close()

	cfg := Config{URL: srv.URL, Collection: "lectures"}
	b, err := Open(context.Background(), "website", cfg, &stubEmbedder{vec: []float64{1}}, zerolog.Nop())
	require.NoError(t, err)

	snippets, err := b.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Empty(t, snippets)
	assert.Equal(t, float64(4), searchBody["limit"])
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/collections/lectures/points/search" {
			http.Error(w, "internal", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"result": {"status": "green"}, "status": "ok"}`))
	}))
	defer srv.Close()

	cfg := Config{URL: srv.URL, Collection: "lectures"}
	b, err := Open(context.Background(), "website", cfg, &stubEmbedder{vec: []float64{1}}, zerolog.Nop())
	require.NoError(t, err)

	_, err = b.Search(context.Background(), "q", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "points/search")
}

func TestSearchEmbedderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": {"status": "green"}, "status": "ok"}`))
	}))
	defer srv.Close()

	cfg := Config{URL: srv.URL, Collection: "lectures"}
	b, err := Open(context.Background(), "website", cfg, &stubEmbedder{err: context.DeadlineExceeded}, zerolog.Nop())
	require.NoError(t, err)

	_, err = b.Search(context.Background(), "q", 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
