package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"edunav/internal/aggregator"
	"edunav/internal/backend"
	"edunav/internal/domain"
)

// State names the position of one question/answer cycle.
type State int

const (
	StateAwaitingInput State = iota
	StateRetrieving
	StateGenerating
	StateNoContext
	StateDone
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateRetrieving:
		return "retrieving"
	case StateGenerating:
		return "generating"
	case StateNoContext:
		return "no_context"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Fixed user-facing messages.
const (
	MsgEnterQuestion = "Please enter a question and ensure all retrievers are loaded."
	MsgNoContext     = "No relevant context found for your question."
)

func errorMessage(err error) string {
	return fmt.Sprintf("Error during retrieval or processing: %v", err)
}

// Result is the terminal outcome of one cycle. Message is ready for
// display on non-success outcomes; SourceErrors carry per-source
// retrieval failures that did not stop the cycle.
type Result struct {
	Cycle        string
	State        State
	Answer       string
	Message      string
	SourceErrors []aggregator.SourceError
	Err          error
}

// Option adjusts one Ask call.
type Option func(*askOptions)

type askOptions struct {
	phase func(State)
}

// WithPhaseFunc registers a callback invoked on the Retrieving and
// Generating transitions, letting a front end show progress without
// owning the state machine. The callback runs on the Ask goroutine and
// must not block.
func WithPhaseFunc(fn func(State)) Option {
	return func(o *askOptions) { o.phase = fn }
}

// Controller orchestrates one question/answer cycle: input gate,
// retrieval, context check, generation. It holds no per-cycle state and
// is safe to share; the registry it reads is immutable after Build.
type Controller struct {
	registry   *backend.Registry
	aggregator *aggregator.Aggregator
	generator  domain.Generator
	log        zerolog.Logger
}

func New(reg *backend.Registry, agg *aggregator.Aggregator, gen domain.Generator, log zerolog.Logger) *Controller {
	return &Controller{
		registry:   reg,
		aggregator: agg,
		generator:  gen,
		log:        log.With().Str("component", "session").Logger(),
	}
}

// Ask runs one full cycle. Empty or whitespace-only questions are
// rejected before any backend work. No usable context short-circuits
// with the fixed message and skips generation. A generation failure ends
// the cycle in StateErrored; nothing is retried here.
func (c *Controller) Ask(ctx context.Context, question string, opts ...Option) Result {
	var o askOptions
	for _, opt := range opts {
		opt(&o)
	}
	id := uuid.NewString()
	log := c.log.With().Str("cycle", id).Logger()

	if strings.TrimSpace(question) == "" {
		log.Debug().Msg("rejected empty question")
		return Result{Cycle: id, State: StateAwaitingInput, Message: MsgEnterQuestion}
	}

	notify(o.phase, StateRetrieving)
	log.Info().Int("sources", c.registry.Len()).Msg("retrieving context")
	agg, err := c.aggregator.Assemble(ctx, c.registry, question)
	if err != nil {
		log.Error().Err(err).Msg("retrieval aborted")
		return Result{Cycle: id, State: StateErrored, Message: errorMessage(err), Err: err}
	}
	if agg.Empty() {
		log.Info().Int("failed_sources", len(agg.Errors)).Msg("no usable context")
		return Result{Cycle: id, State: StateNoContext, Message: MsgNoContext, SourceErrors: agg.Errors}
	}

	notify(o.phase, StateGenerating)
	log.Info().Int("snippets", agg.Snippets).Int("context_chars", len(agg.Text)).Msg("generating answer")
	answer, err := c.generator.Generate(ctx, agg.Text, question)
	if err != nil {
		log.Error().Err(err).Msg("generation failed")
		return Result{Cycle: id, State: StateErrored, Message: errorMessage(err), SourceErrors: agg.Errors, Err: err}
	}

	log.Info().Int("answer_chars", len(answer)).Msg("cycle done")
	return Result{Cycle: id, State: StateDone, Answer: answer, SourceErrors: agg.Errors}
}

func notify(fn func(State), s State) {
	if fn != nil {
		fn(s)
	}
}
