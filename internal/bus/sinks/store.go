package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openquant/collector/internal/bus"
)

// EventRepository persists lifecycle events. The Postgres event store is the
// production implementation.
type EventRepository interface {
	SaveEvent(ctx context.Context, evt bus.Event) error
}

// StoreSink persists lifecycle events via an EventRepository so the module
// history survives restarts.
type StoreSink struct {
	repo   EventRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo EventRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards each event to the repository. It respects ctx deadlines
// and returns the first repository error verbatim.
func (s *StoreSink) Consume(ctx context.Context, batch []bus.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		if err := s.repo.SaveEvent(ctx, evt); err != nil {
			return fmt.Errorf("save lifecycle event %s: %w", evt.ID, err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
