package bus

import "context"

// Sink consumes batches of lifecycle events. Implementations must honor ctx
// deadlines and tolerate repeated calls.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Publisher is the capability the orchestrator consumes; Hub satisfies it.
// Publish must never block the caller.
type Publisher interface {
	Publish(evt Event)
}
