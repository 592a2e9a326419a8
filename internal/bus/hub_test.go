package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestHubDeliversToAllSinks fans one published event out to every sink.
func TestHubDeliversToAllSinks(t *testing.T) {
	t.Parallel()

	first := &captureSink{}
	second := &captureSink{}
	h := NewHub(Config{}, first, second)
	t.Cleanup(func() { _ = h.Close(context.Background()) })

	h.Publish(New(TypeModuleStarted, "store"))

	require.Eventually(t, func() bool {
		return first.count() == 1 && second.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	evt := first.at(0)
	require.Equal(t, TypeModuleStarted, evt.Type)
	require.Equal(t, "store", evt.Module)
	require.False(t, evt.TS.IsZero())
}

// TestHubDiscardsInvalidEvents never hands a malformed event to a sink.
func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	h := NewHub(Config{}, sink)

	h.Publish(Event{Type: TypeModuleStarted}) // missing module and timestamp
	h.Publish(New(TypeModuleStopped, "store"))

	require.Eventually(t, func() bool {
		return sink.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.Close(context.Background()))
	require.Equal(t, 1, sink.count())
}

// TestHubCloseDrainsQueue delivers everything already queued before the
// sinks are closed.
func TestHubCloseDrainsQueue(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	h := NewHub(Config{BufferSize: 64}, sink)

	for i := 0; i < 10; i++ {
		h.Publish(New(TypeModuleStarted, "store"))
	}
	require.NoError(t, h.Close(context.Background()))

	require.Equal(t, 10, sink.count())
	require.True(t, sink.closedOnce())
}

// TestHubPublishAfterCloseIsNoOp drops events published after Close without
// panicking.
func TestHubPublishAfterCloseIsNoOp(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	h := NewHub(Config{}, sink)
	require.NoError(t, h.Close(context.Background()))

	h.Publish(New(TypeModuleStarted, "store"))
	require.Equal(t, 0, sink.count())
}

// TestHubSinkErrorDoesNotStopDelivery keeps delivering to the other sinks
// when one of them fails.
func TestHubSinkErrorDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	bad := &captureSink{consumeErr: errors.New("sink exploded")}
	good := &captureSink{}
	h := NewHub(Config{}, bad, good)
	t.Cleanup(func() { _ = h.Close(context.Background()) })

	h.Publish(New(TypeModuleError, "store"))
	h.Publish(New(TypeModuleStopped, "store"))

	require.Eventually(t, func() bool {
		return good.count() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

// TestHubNilReceiverIsSafe allows optional wiring: a nil hub accepts calls.
func TestHubNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var h *Hub
	h.Publish(New(TypeModuleStarted, "store"))
	require.NoError(t, h.Close(context.Background()))
}

// captureSink records every consumed event.
type captureSink struct {
	mu         sync.Mutex
	events     []Event
	closed     bool
	consumeErr error
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	s.events = append(s.events, batch...)
	s.mu.Unlock()
	return s.consumeErr
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *captureSink) at(i int) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[i]
}

func (s *captureSink) closedOnce() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
