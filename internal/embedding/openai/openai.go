package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"edunav/internal/config"
)

// Client embeds query text through the OpenAI embeddings API.
type Client struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// New creates an embeddings client from config. The API key is read from
// the configured environment variable; a missing key is a startup error.
func New(cfg config.EmbeddingConfig, log zerolog.Logger) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(5),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TimeoutSecs > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.TimeoutSecs)*time.Second))
	}
	client := openai.NewClient(opts...)
	return &Client{
		client: &client,
		model:  cfg.Model,
		log:    log.With().Str("component", "embedder").Logger(),
	}, nil
}

// Model returns the embedding model identifier.
func (c *Client) Model() string { return c.model }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	start := time.Now()
	res, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(res.Data) == 0 || len(res.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	c.log.Debug().
		Str("model", c.model).
		Int("dimension", len(res.Data[0].Embedding)).
		Dur("took", time.Since(start)).
		Msg("embedded query")
	return res.Data[0].Embedding, nil
}
