package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"edunav/internal/domain"
)

// Backend is a minimal REST client searching one Qdrant collection.
// Points are expected to carry a "text" payload field and optionally a
// "metadata" object of string values.
type Backend struct {
	name       string
	url        string
	apiKey     string
	collection string
	embedder   domain.Embedder
	client     *http.Client
	log        zerolog.Logger
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Open creates the backend and verifies the collection exists, so a
// misconfigured or unreachable collection fails at registry build time
// like any other unopenable index.
func Open(ctx context.Context, name string, cfg Config, embedder domain.Embedder, log zerolog.Logger) (*Backend, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	b := &Backend{
		name:       name,
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		embedder:   embedder,
		client:     &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "backend").Str("source", name).Logger(),
	}
	if err := b.getJSON(ctx, fmt.Sprintf("%s/collections/%s", b.url, b.collection), nil); err != nil {
		return nil, fmt.Errorf("collection %s: %w", b.collection, err)
	}
	return b, nil
}

func (b *Backend) Name() string { return b.name }

// Search embeds the query and runs a vector search against the collection.
func (b *Backend) Search(ctx context.Context, query string, limit int) ([]domain.Snippet, error) {
	if limit <= 0 {
		limit = 4
	}
	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", b.url, b.collection)
	if err := b.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	snippets := make([]domain.Snippet, 0, len(resp.Result))
	for _, r := range resp.Result {
		snip := domain.Snippet{Source: b.name, Score: r.Score}
		if v, ok := r.Payload["text"].(string); ok {
			snip.Text = v
		}
		if m, ok := r.Payload["metadata"].(map[string]any); ok {
			snip.Metadata = make(map[string]string, len(m))
			for k, v := range m {
				if s, ok := v.(string); ok {
					snip.Metadata[k] = s
				}
			}
		}
		snippets = append(snippets, snip)
	}
	b.log.Debug().Int("results", len(snippets)).Msg("searched collection")
	return snippets, nil
}

func (b *Backend) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return b.do(req, out)
}

func (b *Backend) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req, out)
}

func (b *Backend) do(req *http.Request, out any) error {
	if b.apiKey != "" {
		req.Header.Set("api-key", b.apiKey)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", req.Method, req.URL.Path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
