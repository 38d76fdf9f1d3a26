package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"edunav/internal/config"
	"edunav/internal/domain"
)

// LoadError records one source whose index could not be opened.
type LoadError struct {
	Source string
	Err    error
}

func (e LoadError) Error() string { return fmt.Sprintf("loading %s index: %v", e.Source, e.Err) }
func (e LoadError) Unwrap() error { return e.Err }

// OpenFunc opens the backend for one configured source. The caller (main)
// supplies the implementation switch; the registry owns ordering and
// failure tolerance.
type OpenFunc func(ctx context.Context, src config.Source) (domain.Backend, error)

// Status reports the outcome of one configured source, in config order.
// Err is nil for live backends.
type Status struct {
	Source string
	Err    error
}

// Registry holds the live backends for a session. It is built once and
// read-only afterwards, so it may be shared across concurrent cycles.
type Registry struct {
	order    []string
	backends map[string]domain.Backend
	statuses []Status
}

// Build attempts to open every configured source in order. A failure
// records a LoadError for that source and construction continues; the
// result may hold any subset of the configured sources, including none.
func Build(ctx context.Context, sources []config.Source, open OpenFunc, log zerolog.Logger) *Registry {
	r := &Registry{backends: make(map[string]domain.Backend, len(sources))}
	for _, src := range sources {
		if _, exists := r.backends[src.Name]; exists {
			err := fmt.Errorf("duplicate source name %q", src.Name)
			r.statuses = append(r.statuses, Status{Source: src.Name, Err: err})
			log.Warn().Str("source", src.Name).Err(err).Msg("skipping source")
			continue
		}
		b, err := open(ctx, src)
		if err != nil {
			r.statuses = append(r.statuses, Status{Source: src.Name, Err: err})
			log.Warn().Str("source", src.Name).Err(err).Msg("failed to load index")
			continue
		}
		r.order = append(r.order, src.Name)
		r.backends[src.Name] = b
		r.statuses = append(r.statuses, Status{Source: src.Name})
		log.Info().Str("source", src.Name).Msg("loaded index")
	}
	return r
}

// Names returns the live source names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the live backend registered under name.
func (r *Registry) Get(name string) (domain.Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Len reports how many backends are live.
func (r *Registry) Len() int { return len(r.order) }

// Statuses returns one entry per configured source, in config order.
func (r *Registry) Statuses() []Status {
	out := make([]Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

// Failures returns the load errors recorded during Build.
func (r *Registry) Failures() []LoadError {
	var out []LoadError
	for _, st := range r.statuses {
		if st.Err != nil {
			out = append(out, LoadError{Source: st.Source, Err: st.Err})
		}
	}
	return out
}
