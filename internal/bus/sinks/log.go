package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/openquant/collector/internal/bus"
)

// LogSink emits structured logs for lifecycle events. Module errors log at
// warn level; everything else at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []bus.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("event_id", evt.ID.String()),
			zap.String("module", evt.Module),
			zap.String("type", string(evt.Type)),
			zap.String("status", evt.Status),
			zap.String("note", evt.Note),
			zap.Time("ts", evt.TS),
		}
		if evt.Type == bus.TypeModuleError {
			s.logger.Warn("module lifecycle event", fields...)
			continue
		}
		s.logger.Info("module lifecycle event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
