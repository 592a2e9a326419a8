package module

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fastHealthConfig returns a config whose health loop fires at the minimum
// allowed interval so tests observe checks quickly.
func fastHealthConfig(name string) Config {
	return Config{
		Name:                name,
		Enabled:             true,
		HealthCheckInterval: time.Second,
		HealthCheckTimeout:  time.Second,
	}
}

// TestHealthLoopChecksRunningModule runs an immediate first check and then
// polls on the configured interval, updating the module's health status.
func TestHealthLoopChecksRunningModule(t *testing.T) {
	t.Parallel()

	m := NewManager(Options{})
	store := newFakeModule("store")
	registerFake(t, m, store, fastHealthConfig("store"))

	require.NoError(t, m.StartAll(context.Background()))
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	require.Eventually(t, func() bool {
		return store.checkCalls() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		snap, _ := m.GetModule("store")
		return snap.HealthStatus == StatusHealthy && snap.LastHealthCheck != nil
	}, 3*time.Second, 10*time.Millisecond)
}

// TestHealthLoopRestartsUnhealthyModule restarts a module that reports
// unhealthy, and the restarted module resumes as running.
func TestHealthLoopRestartsUnhealthyModule(t *testing.T) {
	t.Parallel()

	m := NewManager(Options{})
	store := newFakeModule("store")
	store.setHealth(Health{Status: StatusUnhealthy}, nil)
	cfg := fastHealthConfig("store")
	cfg.MaxRestartAttempts = 3
	cfg.RestartDelay = 10 * time.Millisecond
	registerFake(t, m, store, cfg)

	require.NoError(t, m.StartAll(context.Background()))
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	require.Eventually(t, func() bool {
		return store.stopCalls() >= 1 && store.startCalls() >= 2
	}, 5*time.Second, 10*time.Millisecond)

	// A recovered module stays up and the loop stops cycling it.
	store.setHealth(Health{Status: StatusHealthy}, nil)
	require.Eventually(t, func() bool {
		snap, _ := m.GetModule("store")
		return snap.State == StateRunning.String() && snap.HealthStatus == StatusHealthy
	}, 5*time.Second, 10*time.Millisecond)
}

// TestHealthLoopHonorsRestartBudget restarts a persistently unhealthy module
// at most MaxRestartAttempts times, then leaves it alone.
func TestHealthLoopHonorsRestartBudget(t *testing.T) {
	t.Parallel()

	m := NewManager(Options{})
	store := newFakeModule("store")
	store.setHealth(Health{Status: StatusUnhealthy}, nil)
	cfg := fastHealthConfig("store")
	cfg.MaxRestartAttempts = 1
	cfg.RestartDelay = 10 * time.Millisecond
	registerFake(t, m, store, cfg)

	require.NoError(t, m.StartAll(context.Background()))
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	require.Eventually(t, func() bool {
		snap, _ := m.GetModule("store")
		return snap.RestartCount == 1
	}, 5*time.Second, 10*time.Millisecond)

	// Let a few more unhealthy checks land on the restarted instance.
	before := store.checkCalls()
	require.Eventually(t, func() bool {
		return store.checkCalls() >= before+2
	}, 5*time.Second, 10*time.Millisecond)

	snap, _ := m.GetModule("store")
	require.Equal(t, 1, snap.RestartCount, "budget of one restart must hold")
	require.Equal(t, StateRunning.String(), snap.State)
}

// TestHealthCheckErrorRecordedWithoutStateChange stores the error status and
// message but does not flip a running module into Error state on its own.
func TestHealthCheckErrorRecordedWithoutStateChange(t *testing.T) {
	t.Parallel()

	m := NewManager(Options{})
	store := newFakeModule("store")
	store.setHealth(Health{}, errors.New("probe timed out"))
	cfg := fastHealthConfig("store")
	cfg.MaxRestartAttempts = 0
	registerFake(t, m, store, cfg)

	require.NoError(t, m.StartAll(context.Background()))
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	require.Eventually(t, func() bool {
		snap, _ := m.GetModule("store")
		return snap.HealthStatus == StatusError
	}, 3*time.Second, 10*time.Millisecond)

	snap, _ := m.GetModule("store")
	require.Equal(t, StateRunning.String(), snap.State)
	require.Contains(t, snap.ErrorMessage, "probe timed out")
}

// TestHealthNormalizeDefaultsEmptyStatus treats a zero-value report as
// healthy.
func TestHealthNormalizeDefaultsEmptyStatus(t *testing.T) {
	t.Parallel()

	m := NewManager(Options{})
	store := newFakeModule("store")
	store.setHealth(Health{}, nil)
	registerFake(t, m, store, fastHealthConfig("store"))

	require.NoError(t, m.StartAll(context.Background()))
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	require.Eventually(t, func() bool {
		snap, _ := m.GetModule("store")
		return snap.HealthStatus == StatusHealthy
	}, 3*time.Second, 10*time.Millisecond)
}

// TestStopAllCancelsHealthLoops awaits loop shutdown: after StopAll returns,
// no further checks arrive.
func TestStopAllCancelsHealthLoops(t *testing.T) {
	t.Parallel()

	m := NewManager(Options{})
	store := newFakeModule("store")
	registerFake(t, m, store, fastHealthConfig("store"))

	require.NoError(t, m.StartAll(context.Background()))
	require.Eventually(t, func() bool {
		return store.checkCalls() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, m.StopAll(context.Background()))

	settled := store.checkCalls()
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, settled, store.checkCalls())
	require.Equal(t, 1, store.stopCalls())
}
