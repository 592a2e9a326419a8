package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	p := NewMemoryPublisher()

	id, err := p.Publish(context.Background(), "records", map[string]any{"source": "ons-cpi"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	id, err = p.Publish(context.Background(), "records", map[string]any{"source": "boe-rates"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "records", msgs[0].Topic)
}
