// Package app assembles the application: it builds the infrastructure
// backends selected by configuration, registers them in the DI container,
// and wires every module factory into the lifecycle manager.
package app

import (
	"context"
	"fmt"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/openquant/collector/internal/api"
	"github.com/openquant/collector/internal/archive"
	"github.com/openquant/collector/internal/bus"
	"github.com/openquant/collector/internal/bus/sinks"
	systemclock "github.com/openquant/collector/internal/clock/system"
	"github.com/openquant/collector/internal/collector"
	"github.com/openquant/collector/internal/di"
	sha256hash "github.com/openquant/collector/internal/hash/sha256"
	uuidgen "github.com/openquant/collector/internal/id/uuid"
	"github.com/openquant/collector/internal/logging"
	"github.com/openquant/collector/internal/metrics"
	"github.com/openquant/collector/internal/module"
	"github.com/openquant/collector/internal/queue"
	"github.com/openquant/collector/internal/scheduler"
	"github.com/openquant/collector/internal/storage"
	"github.com/openquant/collector/internal/storage/memory"
	"github.com/openquant/collector/internal/storage/postgres"
)

// App holds the assembled application. It owns the infrastructure backends
// and releases them on Close; the Manager owns the module lifecycles.
type App struct {
	Config    Config
	Logger    *zap.Logger
	Container *di.Container
	Hub       *bus.Hub
	Manager   *module.Manager

	jobs       chan collector.Job
	eventStore *postgres.EventStore
	closers    []func() error
}

// New builds the application from the configuration. Backend selection
// fails fast: an unknown driver name is a configuration error, not a
// silent fallback.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()

	a := &App{
		Config: cfg,
		Logger: logger,
		jobs:   make(chan collector.Job, cfg.Manager.JobBuffer),
	}

	store, err := a.buildRecordStore(ctx, cfg.Storage)
	if err != nil {
		a.releaseBackends()
		return nil, err
	}
	arch, err := a.buildArchive(ctx, cfg.Archive)
	if err != nil {
		a.releaseBackends()
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx, cfg.Queue)
	if err != nil {
		a.releaseBackends()
		return nil, err
	}

	container := di.New()
	container.RegisterInstance("logger", logger)
	container.RegisterInstance("record_store", store)
	container.RegisterInstance("archive", arch)
	container.RegisterInstance("publisher", publisher)
	container.RegisterInstance("jobs", a.jobs)
	container.RegisterInstance("clock", systemclock.New())
	container.RegisterInstance("hasher", sha256hash.New())
	container.RegisterInstance("ids", uuidgen.New())
	a.Container = container

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		a.releaseBackends()
		return nil, fmt.Errorf("build lifecycle sink: %w", err)
	}
	hubSinks := []bus.Sink{sinks.NewLogSink(logger), promSink}
	if a.eventStore != nil {
		// Lifecycle history lands next to the records it explains.
		hubSinks = append(hubSinks, sinks.NewStoreSink(a.eventStore, logger))
	}
	a.Hub = bus.NewHub(bus.Config{Logger: logger}, hubSinks...)

	a.Manager = module.NewManager(module.Options{
		Logger:           logger,
		Container:        container,
		Events:           a.Hub,
		CriticalModules:  cfg.Manager.CriticalModules,
		StartConcurrency: cfg.Manager.StartConcurrency,
	})
	a.registerFactories()

	for _, d := range cfg.Modules {
		if err := a.Manager.RegisterModule(d.moduleConfig()); err != nil {
			a.releaseBackends()
			return nil, fmt.Errorf("register module %q: %w", d.Name, err)
		}
	}
	if err := a.Manager.ValidateDependencyGraph(); err != nil {
		a.releaseBackends()
		return nil, fmt.Errorf("validate module graph: %w", err)
	}
	if err := metrics.RegisterStateCollector(a.moduleStates); err != nil {
		a.releaseBackends()
		return nil, fmt.Errorf("register state gauge: %w", err)
	}
	return a, nil
}

// moduleStates snapshots every module's lifecycle state for the gauge.
func (a *App) moduleStates() map[string]string {
	status := a.Manager.Status()
	states := make(map[string]string, len(status))
	for name, snap := range status {
		states[name] = snap.State
	}
	return states
}

// Start brings every enabled module up in dependency order.
func (a *App) Start(ctx context.Context) error {
	return a.Manager.StartAll(ctx)
}

// Shutdown stops every module, drains the event hub, and releases the
// infrastructure backends.
func (a *App) Shutdown(ctx context.Context) error {
	stopErr := a.Manager.StopAll(ctx)
	a.Hub.Close(ctx)
	a.releaseBackends()
	_ = a.Logger.Sync()
	return stopErr
}

// releaseBackends closes every backend built so far, in reverse order.
func (a *App) releaseBackends() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close backend", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) buildRecordStore(ctx context.Context, cfg StorageConfig) (collector.RecordStore, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.Config{DSN: cfg.DSN})
		if err != nil {
			return nil, fmt.Errorf("build postgres pool: %w", err)
		}
		store, err := postgres.NewRecordStoreWithPool(pool, cfg.Table)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("build postgres record store: %w", err)
		}
		events, err := postgres.NewEventStoreWithPool(pool, "")
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("build postgres event store: %w", err)
		}
		a.eventStore = events
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		a.Logger.Info("using postgres record store", zap.String("table", cfg.Table))
		return store, nil
	case "memory", "":
		a.Logger.Info("using in-memory record store")
		return memory.NewRecordStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func (a *App) buildArchive(ctx context.Context, cfg ArchiveConfig) (collector.Archive, error) {
	switch cfg.Driver {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("build gcs client: %w", err)
		}
		arch, err := archive.NewGCS(client, archive.GCSConfig{Bucket: cfg.Bucket})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("build gcs archive: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.Logger.Info("using gcs archive", zap.String("bucket", cfg.Bucket))
		return arch, nil
	case "fs":
		arch, err := archive.NewFS(archive.FSConfig{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("build filesystem archive: %w", err)
		}
		a.Logger.Info("using filesystem archive", zap.String("base_dir", cfg.BaseDir))
		return arch, nil
	case "memory", "":
		a.Logger.Info("using in-memory archive")
		return archive.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg QueueConfig) (collector.Publisher, error) {
	switch cfg.Driver {
	case "pubsub":
		publisher, err := queue.NewPubSubPublisher(ctx, cfg.ProjectID, cfg.TopicID)
		if err != nil {
			return nil, fmt.Errorf("build pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, publisher.Close)
		a.Logger.Info("using pubsub publisher",
			zap.String("project", cfg.ProjectID), zap.String("topic", cfg.TopicID))
		return publisher, nil
	case "memory", "":
		a.Logger.Info("using in-memory publisher")
		return queue.NewMemoryPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}

// registerFactories installs the constructor for every module the default
// set or a config file can name. Constructors pull their collaborators from
// the DI container by parameter name.
func (a *App) registerFactories() {
	a.Manager.RegisterFactory("storage", module.Factory{
		Params: []module.Param{{Name: "record_store", Required: true}},
		New: func(values map[string]any) (module.Module, error) {
			store, ok := values["record_store"].(collector.RecordStore)
			if !ok {
				return nil, fmt.Errorf("parameter record_store is not a RecordStore")
			}
			return storage.New(store, a.Logger)
		},
	})
	a.Manager.RegisterFactory("archive", module.Factory{
		Params: []module.Param{{Name: "archive", Required: true}},
		New: func(values map[string]any) (module.Module, error) {
			arch, ok := values["archive"].(collector.Archive)
			if !ok {
				return nil, fmt.Errorf("parameter archive is not an Archive")
			}
			return archive.NewModule(arch, a.Logger)
		},
	})
	a.Manager.RegisterFactory("queue", module.Factory{
		Params: []module.Param{{Name: "publisher", Required: true}},
		New: func(values map[string]any) (module.Module, error) {
			publisher, ok := values["publisher"].(collector.Publisher)
			if !ok {
				return nil, fmt.Errorf("parameter publisher is not a Publisher")
			}
			return queue.NewModule(publisher, a.Logger)
		},
	})
	a.Manager.RegisterFactory("collector", module.Factory{
		Params: []module.Param{
			{Name: "jobs", Required: true},
			{Name: "record_store", Required: true},
			{Name: "archive", Required: true},
			{Name: "publisher", Required: true},
			{Name: "clock", Required: true},
			{Name: "hasher", Required: true},
			{Name: "ids", Required: true},
		},
		New: func(values map[string]any) (module.Module, error) {
			deps := collector.Deps{Logger: a.Logger}
			jobs, ok := values["jobs"].(chan collector.Job)
			if !ok {
				return nil, fmt.Errorf("parameter jobs is not a job channel")
			}
			deps.Jobs = jobs
			if deps.Store, ok = values["record_store"].(collector.RecordStore); !ok {
				return nil, fmt.Errorf("parameter record_store is not a RecordStore")
			}
			if deps.Archive, ok = values["archive"].(collector.Archive); !ok {
				return nil, fmt.Errorf("parameter archive is not an Archive")
			}
			if deps.Publisher, ok = values["publisher"].(collector.Publisher); !ok {
				return nil, fmt.Errorf("parameter publisher is not a Publisher")
			}
			if deps.Clock, ok = values["clock"].(collector.Clock); !ok {
				return nil, fmt.Errorf("parameter clock is not a Clock")
			}
			if deps.Hasher, ok = values["hasher"].(collector.Hasher); !ok {
				return nil, fmt.Errorf("parameter hasher is not a Hasher")
			}
			if deps.IDs, ok = values["ids"].(collector.IDGenerator); !ok {
				return nil, fmt.Errorf("parameter ids is not an IDGenerator")
			}
			return collector.New(deps)
		},
	})
	a.Manager.RegisterFactory("scheduler", module.Factory{
		Params: []module.Param{
			{Name: "jobs", Required: true},
			{Name: "ids", Required: true},
			{Name: "clock", Required: true},
		},
		New: func(values map[string]any) (module.Module, error) {
			deps := scheduler.Deps{Logger: a.Logger}
			jobs, ok := values["jobs"].(chan collector.Job)
			if !ok {
				return nil, fmt.Errorf("parameter jobs is not a job channel")
			}
			deps.Jobs = jobs
			if deps.IDs, ok = values["ids"].(collector.IDGenerator); !ok {
				return nil, fmt.Errorf("parameter ids is not an IDGenerator")
			}
			if deps.Clock, ok = values["clock"].(collector.Clock); !ok {
				return nil, fmt.Errorf("parameter clock is not a Clock")
			}
			return scheduler.New(deps)
		},
	})
	a.Manager.RegisterFactory("api", module.Factory{
		New: func(map[string]any) (module.Module, error) {
			return api.NewModule(a.Manager, a.Logger)
		},
	})
}
