package dispatch

import (
	"context"

	"github.com/tphakala/safeguard-go/internal/logger"
)

type funcSink struct {
	name string
	fn   func(ctx context.Context, ev AlertEvent) error
}

func (s funcSink) Name() string { return s.name }

func (s funcSink) Deliver(ctx context.Context, ev AlertEvent) error { return s.fn(ctx, ev) }

// SinkFunc adapts fn into a Sink called name.
func SinkFunc(name string, fn func(ctx context.Context, ev AlertEvent) error) Sink {
	return funcSink{name: name, fn: fn}
}

// LogSink writes every alert to a logger. It is the fallback sink when no
// other destination is configured.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a log sink; nil uses the dispatch logger.
func NewLogSink(log logger.Logger) *LogSink {
	if log == nil {
		log = GetLogger()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, ev AlertEvent) error {
	s.log.Warn(ev.Title(),
		logger.String("alert_id", ev.ID.String()),
		logger.String("session", ev.Session),
		logger.String("message", ev.Message),
		logger.Time("timestamp", ev.Timestamp))
	return nil
}
