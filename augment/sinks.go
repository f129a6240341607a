package augment

import (
	"context"
	"io"
	"log/slog"

	"github.com/hazyhaar/chataug/augment/activity"
	"github.com/hazyhaar/chataug/augment/internal/sink"
)

// Sink is the output interface for activity records.
type Sink = sink.Sink

// NewStdoutSink creates a JSON-lines sink. nil writes to os.Stdout.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process sink.
func NewCallbackSink(fn func(ctx context.Context, rec activity.Record) error) Sink {
	return sink.NewCallback(fn)
}

// SinksFromConfig builds the sinks listed in cfg. Unknown types are logged
// and skipped; with none configured, records go to w as JSON lines.
func SinksFromConfig(cfg *Config, w io.Writer, logger *slog.Logger) []Sink {
	if logger == nil {
		logger = slog.Default()
	}
	var sinks []Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, NewStdoutSink(w))
		case "webhook":
			sinks = append(sinks, NewWebhookSink(sc.URL, logger))
		default:
			logger.Warn("augment: unknown sink type", "type", sc.Type)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, NewStdoutSink(w))
	}
	return sinks
}
