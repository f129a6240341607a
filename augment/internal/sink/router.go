package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/chataug/augment/activity"
)

// Router fans records out to every sink. One sink error does not block the
// others; errors are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Send(ctx context.Context, rec activity.Record) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, rec); err != nil {
			r.logger.Warn("sink: send activity failed", "kind", rec.Kind, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
