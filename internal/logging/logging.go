package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"edunav/internal/config"
)

// New builds the root logger from config. When cfg.File is set, logs are
// appended there (the interactive UI owns the terminal, so file logging is
// the only safe target for it). Otherwise logs go to console when the
// caller asks for it, or are discarded. The returned closer is non-nil
// only for file targets.
func New(cfg config.LoggingConfig, console bool) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	var w io.Writer
	var closer io.Closer
	switch {
	case cfg.File != "":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, err
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		w = f
		closer = f
	case console:
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	default:
		w = io.Discard
	}

	log := zerolog.New(w).With().Timestamp().Logger().Level(level)
	return log, closer, nil
}
