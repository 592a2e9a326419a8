package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStateCollectorExportsCurrentStates(t *testing.T) {
	t.Parallel()

	c := NewStateCollector(func() map[string]string {
		return map[string]string{
			"storage":   "running",
			"collector": "error",
		}
	})

	expected := `
# HELP collector_module_state Current lifecycle state per module (value is always 1).
# TYPE collector_module_state gauge
collector_module_state{module="collector",state="error"} 1
collector_module_state{module="storage",state="running"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}
