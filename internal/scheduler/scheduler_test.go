package scheduler

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openquant/collector/internal/collector"
	"github.com/openquant/collector/internal/id/uuid"
	"github.com/openquant/collector/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

func newTestModule(t *testing.T, jobs chan collector.Job) *Module {
	t.Helper()
	m, err := New(Deps{Jobs: jobs, IDs: uuid.New()})
	require.NoError(t, err)
	return m
}

// TestInitializeRejectsBadSpec fails fast on an unparseable cron expression.
func TestInitializeRejectsBadSpec(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, make(chan collector.Job, 1))
	err := m.Initialize(context.Background(), map[string]any{
		"jobs": []map[string]any{
			{"spec": "not-a-spec", "source": map[string]any{"name": "cpi", "url": "https://example.com"}},
		},
	})
	require.ErrorContains(t, err, "bad cron spec")
}

// TestInitializeRequiresJobs rejects an empty schedule list.
func TestInitializeRequiresJobs(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, make(chan collector.Job, 1))
	err := m.Initialize(context.Background(), map[string]any{})
	require.ErrorContains(t, err, "at least one job is required")
}

// TestRunOnStartEnqueuesImmediately pushes one job per schedule at startup.
func TestRunOnStartEnqueuesImmediately(t *testing.T) {
	t.Parallel()

	jobs := make(chan collector.Job, 4)
	m := newTestModule(t, jobs)
	require.NoError(t, m.Initialize(context.Background(), map[string]any{
		"run_on_start": true,
		"jobs": []map[string]any{
			{"name": "cpi", "spec": "0 6 * * *", "source": map[string]any{"name": "ons-cpi", "url": "https://example.com/cpi", "series": "cpi.monthly"}},
		},
	}))
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	select {
	case job := <-jobs:
		require.NotEmpty(t, job.ID)
		require.Equal(t, "ons-cpi", job.Source.Name)
		require.Equal(t, "cpi.monthly", job.Source.Series)
	case <-time.After(time.Second):
		t.Fatal("expected a job to be enqueued at startup")
	}
}

// TestEnqueueDropsWhenQueueFull never blocks the cron goroutine.
func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	jobs := make(chan collector.Job, 1)
	m := newTestModule(t, jobs)
	require.NoError(t, m.Initialize(context.Background(), map[string]any{
		"jobs": []map[string]any{
			{"name": "cpi", "spec": "@hourly", "source": map[string]any{"name": "ons-cpi", "url": "https://example.com/cpi"}},
		},
	}))

	spec := JobSpec{Name: "cpi", Source: collector.Source{Name: "ons-cpi", URL: "https://example.com/cpi"}}
	m.enqueue(spec)
	m.enqueue(spec)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.EqualValues(t, 1, m.fired)
	require.EqualValues(t, 1, m.dropped)
}

// TestHealthCheckReportsNextRuns exposes the installed schedules.
func TestHealthCheckReportsNextRuns(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, make(chan collector.Job, 1))
	require.NoError(t, m.Initialize(context.Background(), map[string]any{
		"jobs": []map[string]any{
			{"name": "cpi", "spec": "@hourly", "source": map[string]any{"name": "ons-cpi", "url": "https://example.com/cpi"}},
		},
	}))
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	health, err := m.HealthCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, "healthy", health.Status)
	require.Equal(t, 1, health.Details["jobs"])
	next, ok := health.Details["next_run"].(map[string]string)
	require.True(t, ok)
	require.Contains(t, next, "cpi")
}
