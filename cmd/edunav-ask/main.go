package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"edunav/internal/aggregator"
	"edunav/internal/backend"
	"edunav/internal/backend/local"
	"edunav/internal/backend/qdrant"
	"edunav/internal/config"
	"edunav/internal/domain"
	"edunav/internal/embedding/openai"
	"edunav/internal/embedding/tfidf"
	"edunav/internal/generation"
	"edunav/internal/logging"
	"edunav/internal/session"
)

func main() {
	var cfgPath, envPath, q string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/edunav/config.yaml if not provided)")
	flag.StringVar(&envPath, "env", "", "Path to an env file with credentials (default: ./.env)")
	flag.StringVar(&q, "q", "", "The question to ask (alternative to positional arguments)")
	flag.Parse()

	question := strings.TrimSpace(q)
	if question == "" {
		question = strings.TrimSpace(strings.Join(flag.Args(), " "))
	}
	if question == "" {
		fmt.Fprintln(os.Stderr, "Usage: edunav-ask [--config=config.yaml] \"your question\"")
		os.Exit(2)
	}

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logging.New(cfg.Logging, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx := context.Background()
	ctrl, reg, err := assemble(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	for _, st := range reg.Statuses() {
		if st.Err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s index: %v\n", st.Source, st.Err)
		} else {
			fmt.Fprintf(os.Stderr, "Loaded %s index successfully.\n", st.Source)
		}
	}

	res := ctrl.Ask(ctx, question, session.WithPhaseFunc(func(s session.State) {
		switch s {
		case session.StateRetrieving:
			fmt.Fprintln(os.Stderr, "Retrieving information...")
		case session.StateGenerating:
			fmt.Fprintln(os.Stderr, "Generating answer...")
		}
	}))

	for _, se := range res.SourceErrors {
		fmt.Fprintln(os.Stderr, se.Error())
	}
	switch res.State {
	case session.StateDone:
		fmt.Println(res.Answer)
	case session.StateAwaitingInput:
		fmt.Fprintln(os.Stderr, res.Message)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, res.Message)
		os.Exit(1)
	}
}

// assemble mirrors the TUI binary: one dependency graph built at startup.
func assemble(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*session.Controller, *backend.Registry, error) {
	gen, err := generation.NewOpenAI(cfg.LLM, log)
	if err != nil {
		return nil, nil, fmt.Errorf("generator init failed: %w", err)
	}
	emb, err := openai.New(cfg.Embedding, log)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder init failed: %w", err)
	}

	open := func(ctx context.Context, src config.Source) (domain.Backend, error) {
		switch src.Type {
		case "local":
			idx, err := local.Load(src.Path)
			if err != nil {
				return nil, err
			}
			var srcEmb domain.Embedder = emb
			if src.Embedding == "tfidf" {
				if idx.Manifest.TFIDF == nil {
					return nil, fmt.Errorf("index at %s has no tfidf statistics", src.Path)
				}
				srcEmb, err = tfidf.New(idx.Manifest.TFIDF.Vocabulary, idx.Manifest.TFIDF.IDF)
				if err != nil {
					return nil, err
				}
			}
			return local.New(src.Name, idx, srcEmb, log), nil
		case "qdrant":
			qcfg := qdrant.Config{
				URL:        src.URL,
				APIKey:     os.Getenv(src.APIKeyEnv),
				Collection: src.Collection,
				Timeout:    time.Duration(cfg.Retrieval.TimeoutSecs) * time.Second,
			}
			return qdrant.Open(ctx, src.Name, qcfg, emb, log)
		default:
			return nil, fmt.Errorf("unknown source type %q", src.Type)
		}
	}

	reg := backend.Build(ctx, cfg.Sources, open, log)
	agg := aggregator.New(cfg.Retrieval, log)
	ctrl := session.New(reg, agg, gen, log)
	return ctrl, reg, nil
}
