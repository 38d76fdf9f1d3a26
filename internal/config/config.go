package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LLMConfig holds configuration for the chat-completion client.
type LLMConfig struct {
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int64   `yaml:"max_tokens,omitempty"`
	BaseURL        string  `yaml:"base_url,omitempty"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	TimeoutSecs    int     `yaml:"timeout_secs"`
	PromptTemplate string  `yaml:"prompt_template,omitempty"`
}

// EmbeddingConfig holds configuration for the OpenAI-compatible embedder.
type EmbeddingConfig struct {
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig bounds how much context one question may assemble.
type RetrievalConfig struct {
	PerSourceLimit    int `yaml:"per_source_limit"`
	SnippetCharBudget int `yaml:"snippet_char_budget"`
	TimeoutSecs       int `yaml:"timeout_secs"`
}

// Source describes one retrieval backend. Type selects the implementation:
// "local" opens an on-disk index at Path, "qdrant" searches a remote
// collection. Embedding selects how the query is vectorized for this source.
type Source struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Path      string `yaml:"path,omitempty"`
	Embedding string `yaml:"embedding,omitempty"`

	// qdrant only
	URL        string `yaml:"url,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	APIKeyEnv  string `yaml:"api_key_env,omitempty"`
}

// LoggingConfig controls log level and destination. An empty File sends
// logs to stderr for the CLI and discards them for the TUI.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Sources   []Source        `yaml:"sources"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/edunav/config.yaml.
// If neither exists, it writes defaults to ~/.config/edunav/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "edunav", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		LLM: LLMConfig{
			Model:       "gpt-4o",
			Temperature: 0,
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 120,
		},
		Embedding: EmbeddingConfig{
			Model:       "text-embedding-3-small",
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 30,
		},
		Retrieval: RetrievalConfig{
			PerSourceLimit:    4,
			SnippetCharBudget: 2000,
			TimeoutSecs:       60,
		},
		Sources: []Source{
			{Name: "youtube", Type: "local", Path: "youtube"},
			{Name: "website", Type: "local", Path: "website"},
			{Name: "pdf", Type: "local", Path: "PDF"},
			{Name: "pptx", Type: "local", Path: "pptx"},
		},
		Logging: LoggingConfig{Level: "info"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Retrieval.PerSourceLimit == 0 {
		cfg.Retrieval.PerSourceLimit = 4
	}
	if cfg.Retrieval.SnippetCharBudget == 0 {
		cfg.Retrieval.SnippetCharBudget = 2000
	}
	if cfg.Retrieval.TimeoutSecs == 0 {
		cfg.Retrieval.TimeoutSecs = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	for i := range cfg.Sources {
		if cfg.Sources[i].Type == "" {
			cfg.Sources[i].Type = "local"
		}
		if cfg.Sources[i].Embedding == "" {
			cfg.Sources[i].Embedding = "openai"
		}
	}
}

func validate(cfg *AppConfig) error {
	for _, src := range cfg.Sources {
		if src.Name == "" {
			return errors.New("source with empty name")
		}
		switch src.Type {
		case "local":
			if src.Path == "" {
				return fmt.Errorf("source %s: local type requires path", src.Name)
			}
		case "qdrant":
			if src.URL == "" || src.Collection == "" {
				return fmt.Errorf("source %s: qdrant type requires url and collection", src.Name)
			}
		default:
			return fmt.Errorf("source %s: unknown type %q", src.Name, src.Type)
		}
		switch src.Embedding {
		case "openai":
		case "tfidf":
			// tfidf statistics live in the local index manifest
			if src.Type != "local" {
				return fmt.Errorf("source %s: tfidf embedding requires a local index", src.Name)
			}
		default:
			return fmt.Errorf("source %s: unknown embedding %q", src.Name, src.Embedding)
		}
	}
	return nil
}
