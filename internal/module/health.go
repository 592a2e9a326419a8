package module

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openquant/collector/internal/bus"
)

// healthLoop is the cancellable handle for one module's periodic check loop.
type healthLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startHealthLoop launches the periodic check loop for a module that just
// reached Running. An existing loop for the same name is cancelled and
// discarded without waiting: when a restart is driven from inside the old
// loop, waiting here would deadlock, and the cancelled loop exits at its
// next suspension point anyway.
func (m *Manager) startHealthLoop(info *Info) {
	m.mu.Lock()
	if old := m.healthLoops[info.Name()]; old != nil {
		old.cancel()
	}
	if m.baseCtx == nil || m.baseCtx.Err() != nil {
		m.baseCtx, m.baseCancel = context.WithCancel(context.Background())
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	loop := &healthLoop{cancel: cancel, done: make(chan struct{})}
	m.healthLoops[info.Name()] = loop
	m.mu.Unlock()

	go m.runHealthLoop(ctx, info, loop)
}

// cancelHealthLoop cancels the loop registered under name, if any. With
// await set, it also blocks until the loop goroutine exits or ctx is done,
// so a module's health check can never fire after its stop began.
func (m *Manager) cancelHealthLoop(ctx context.Context, name string, await bool) {
	m.mu.Lock()
	loop := m.healthLoops[name]
	delete(m.healthLoops, name)
	m.mu.Unlock()
	if loop == nil {
		return
	}
	loop.cancel()
	if !await {
		return
	}
	select {
	case <-loop.done:
	case <-ctx.Done():
	}
}

// runHealthLoop performs a check, then suspends for the configured interval,
// until cancelled. Cancellation exits immediately without a final check.
// Check failures stay inside the loop: they update the module's health state
// and may trigger a restart, but never terminate the loop or the process.
func (m *Manager) runHealthLoop(ctx context.Context, info *Info, loop *healthLoop) {
	defer close(loop.done)

	interval := info.Config().HealthCheckInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		m.performHealthCheck(ctx, info)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			timer.Reset(interval)
		}
	}
}

// performHealthCheck runs one check iteration: invoke the module's
// HealthCheck under the configured timeout, normalize and record the result,
// publish it, and restart the module when it is unhealthy and its restart
// budget allows.
func (m *Manager) performHealthCheck(ctx context.Context, info *Info) {
	instance := info.getInstance()
	if instance == nil || !info.State().IsActive() {
		return
	}

	cfg := info.Config()
	checkCtx, cancel := context.WithTimeout(ctx, cfg.HealthCheckTimeout)
	health, err := instance.HealthCheck(checkCtx)
	cancel()

	var status string
	if err != nil {
		// Timeouts are treated like any other unhealthy result.
		status = StatusError
		info.recordHealthError(err)
		m.logger.Error("module health check failed",
			zap.String("module", info.Name()),
			zap.Error(err),
		)
	} else {
		status = health.Normalize()
		info.RecordHealthCheck(status)
	}

	evt := bus.New(bus.TypeHealthCheck, info.Name())
	evt.Status = status
	m.publish(evt)

	if status == StatusHealthy {
		return
	}
	if !info.CanRestart() {
		m.logger.Warn("module unhealthy with restart budget exhausted",
			zap.String("module", info.Name()),
			zap.String("status", status),
			zap.Int("max_restart_attempts", cfg.MaxRestartAttempts),
		)
		return
	}
	m.logger.Warn("module unhealthy, restarting",
		zap.String("module", info.Name()),
		zap.String("status", status),
	)
	// The restart runs on the manager's lifecycle context: Restart cancels
	// this loop's own context, which must not abort the restart itself.
	if err := m.Restart(m.lifecycleContext(), info.Name()); err != nil {
		m.logger.Error("module restart failed",
			zap.String("module", info.Name()),
			zap.Error(err),
		)
	}
}
