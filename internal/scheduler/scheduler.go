// Package scheduler enqueues collection jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/openquant/collector/internal/collector"
	"github.com/openquant/collector/internal/metrics"
	"github.com/openquant/collector/internal/module"
)

// JobSpec binds a cron expression to a source.
type JobSpec struct {
	// Name identifies the job in logs and metrics; defaults to the source
	// name.
	Name string `mapstructure:"name"`
	// Spec is a standard five-field cron expression.
	Spec string `mapstructure:"spec"`
	// Source is the data source to collect when the schedule fires.
	Source collector.Source `mapstructure:"source"`
}

// Settings is the scheduler module's configuration payload.
type Settings struct {
	// Jobs lists the schedules to install.
	Jobs []JobSpec `mapstructure:"jobs"`
	// RunOnStart enqueues every job once immediately after startup.
	RunOnStart bool `mapstructure:"run_on_start"`
}

// Deps are the collaborators the scheduler needs.
type Deps struct {
	Jobs   chan<- collector.Job
	IDs    collector.IDGenerator
	Clock  collector.Clock
	Logger *zap.Logger
}

// Module drives the cron runner. Each firing enqueues one collection job;
// when the queue is full the run is dropped rather than blocking the cron
// goroutine.
type Module struct {
	deps     Deps
	logger   *zap.Logger
	settings Settings

	cron    *cron.Cron
	entries map[string]cron.EntryID

	mu      sync.Mutex
	fired   int64
	dropped int64
}

// New creates an uninitialized scheduler module.
func New(deps Deps) (*Module, error) {
	if deps.Jobs == nil {
		return nil, fmt.Errorf("scheduler: jobs channel is required")
	}
	if deps.IDs == nil {
		return nil, fmt.Errorf("scheduler: id generator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		deps:    deps,
		logger:  logger.Named("scheduler"),
		entries: make(map[string]cron.EntryID),
	}, nil
}

// Name implements module.Module.
func (m *Module) Name() string { return "scheduler" }

// Initialize decodes settings and installs the cron entries.
func (m *Module) Initialize(_ context.Context, config map[string]any) error {
	var settings Settings
	if err := module.DecodeSettings(config, &settings); err != nil {
		return fmt.Errorf("scheduler settings: %w", err)
	}
	if len(settings.Jobs) == 0 {
		return fmt.Errorf("scheduler: at least one job is required")
	}
	m.settings = settings

	m.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{m.logger})))
	for _, spec := range settings.Jobs {
		job := spec
		if job.Name == "" {
			job.Name = job.Source.Name
		}
		if job.Source.URL == "" {
			return fmt.Errorf("scheduler job %q: source url is required", job.Name)
		}
		entryID, err := m.cron.AddFunc(job.Spec, func() { m.enqueue(job) })
		if err != nil {
			return fmt.Errorf("scheduler job %q: bad cron spec %q: %w", job.Name, job.Spec, err)
		}
		m.entries[job.Name] = entryID
	}
	return nil
}

// Start begins the cron runner.
func (m *Module) Start(context.Context) error {
	m.cron.Start()
	if m.settings.RunOnStart {
		for _, spec := range m.settings.Jobs {
			job := spec
			if job.Name == "" {
				job.Name = job.Source.Name
			}
			m.enqueue(job)
		}
	}
	m.logger.Info("schedules installed", zap.Int("jobs", len(m.entries)))
	return nil
}

// Stop halts the cron runner and waits for a running firing to finish.
func (m *Module) Stop(ctx context.Context) error {
	if m.cron == nil {
		return nil
	}
	stopped := m.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// HealthCheck reports the installed schedules and their next run times.
func (m *Module) HealthCheck(context.Context) (module.Health, error) {
	m.mu.Lock()
	fired, dropped := m.fired, m.dropped
	m.mu.Unlock()

	next := make(map[string]string, len(m.entries))
	for name, id := range m.entries {
		entry := m.cron.Entry(id)
		if !entry.Next.IsZero() {
			next[name] = entry.Next.UTC().Format(time.RFC3339)
		}
	}
	return module.Health{
		Status: module.StatusHealthy,
		Details: map[string]any{
			"jobs":     len(m.entries),
			"fired":    fired,
			"dropped":  dropped,
			"next_run": next,
		},
	}, nil
}

func (m *Module) enqueue(spec JobSpec) {
	id, err := m.deps.IDs.NewID()
	if err != nil {
		m.logger.Error("mint job id", zap.String("job", spec.Name), zap.Error(err))
		return
	}
	job := collector.Job{ID: id, Source: spec.Source, EnqueuedAt: m.now()}

	select {
	case m.deps.Jobs <- job:
		m.mu.Lock()
		m.fired++
		m.mu.Unlock()
		metrics.ObserveSchedulerRun(spec.Name, "enqueued")
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
		metrics.ObserveSchedulerRun(spec.Name, "dropped")
		m.logger.Warn("job queue full, dropping scheduled run",
			zap.String("job", spec.Name),
			zap.String("source", spec.Source.Name),
		)
	}
}

func (m *Module) now() time.Time {
	if m.deps.Clock != nil {
		return m.deps.Clock.Now()
	}
	return time.Now().UTC()
}

// cronLogger adapts zap to cron's logger interface for panic recovery.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
