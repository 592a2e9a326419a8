package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNewEventStampsIdentity gives every event a unique ID and a UTC
// timestamp.
func TestNewEventStampsIdentity(t *testing.T) {
	t.Parallel()

	a := New(TypeModuleStarted, "store")
	b := New(TypeModuleStarted, "store")

	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, time.UTC, a.TS.Location())
	require.NoError(t, a.Validate())
}

// TestEventValidate rejects malformed payloads and accepts every supported
// type.
func TestEventValidate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	tests := []struct {
		name    string
		evt     Event
		wantErr string
	}{
		{
			name: "started ok",
			evt:  Event{Type: TypeModuleStarted, Module: "store", TS: now},
		},
		{
			name: "stopped ok",
			evt:  Event{Type: TypeModuleStopped, Module: "store", TS: now},
		},
		{
			name: "error ok",
			evt:  Event{Type: TypeModuleError, Module: "store", TS: now, Note: "boom"},
		},
		{
			name: "health check with status ok",
			evt:  Event{Type: TypeHealthCheck, Module: "store", TS: now, Status: "healthy"},
		},
		{
			name:    "missing module",
			evt:     Event{Type: TypeModuleStarted, TS: now},
			wantErr: "module name is required",
		},
		{
			name:    "missing timestamp",
			evt:     Event{Type: TypeModuleStarted, Module: "store"},
			wantErr: "timestamp is required",
		},
		{
			name:    "health check without status",
			evt:     Event{Type: TypeHealthCheck, Module: "store", TS: now},
			wantErr: "health check event requires status",
		},
		{
			name:    "unknown type",
			evt:     Event{Type: "MODULE_REBOOTED", Module: "store", TS: now},
			wantErr: "unknown event type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.evt.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.wantErr)
		})
	}
}
