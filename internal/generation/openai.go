package generation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"

	"edunav/internal/config"
)

// OpenAI generates answers through the chat completions API. One request
// per question; retry policy belongs to the caller.
type OpenAI struct {
	client      *openai.Client
	model       shared.ChatModel
	temperature float64
	maxTokens   int64
	template    PromptTemplate
	log         zerolog.Logger
}

// NewOpenAI creates the generator from config. The API key is read from
// the configured environment variable; a missing key or an invalid
// prompt template is a startup error.
func NewOpenAI(cfg config.LLMConfig, log zerolog.Logger) (*OpenAI, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	template, err := NewTemplate(cfg.PromptTemplate)
	if err != nil {
		return nil, err
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TimeoutSecs > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.TimeoutSecs)*time.Second))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{
		client:      &client,
		model:       shared.ChatModel(cfg.Model),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		template:    template,
		log:         log.With().Str("component", "generator").Logger(),
	}, nil
}

// Generate renders the prompt and makes one blocking completion call.
func (g *OpenAI) Generate(ctx context.Context, contextText, question string) (string, error) {
	prompt := g.template.Render(contextText, question)
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	params.Temperature = openai.Float(g.temperature)
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(g.maxTokens)
	}

	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}
	g.log.Debug().
		Str("model", string(g.model)).
		Int("prompt_chars", len(prompt)).
		Dur("took", time.Since(start)).
		Msg("generated answer")
	return resp.Choices[0].Message.Content, nil
}
