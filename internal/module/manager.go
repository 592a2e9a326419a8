package module

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openquant/collector/internal/bus"
)

const defaultStartConcurrency = 4

// Options configures a Manager. Zero values are usable: a nop logger, no DI
// container, no event publisher, no critical modules.
type Options struct {
	Logger *zap.Logger
	// Container resolves constructor parameters by name; may be nil.
	Container Container
	// Events receives lifecycle notifications; may be nil.
	Events bus.Publisher
	// CriticalModules names modules whose startup failure aborts StartAll.
	CriticalModules []string
	// StartConcurrency bounds concurrent start tasks (default 4).
	StartConcurrency int
}

// Manager owns every registered module's Info record and instance. All
// lifecycle calls into a module go through the Manager, which guarantees
// start, stop, and health checks for one module never overlap.
type Manager struct {
	mu sync.Mutex

	logger           *zap.Logger
	container        Container
	events           bus.Publisher
	critical         map[string]struct{}
	startConcurrency int

	factories   map[string]*Factory
	modules     map[string]*Info
	order       []string
	deps        map[string][]string
	healthLoops map[string]*healthLoop
	running     bool

	// baseCtx parents every health-check loop; cancelled on StopAll.
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewManager builds a Manager from the options.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := opts.StartConcurrency
	if concurrency <= 0 {
		concurrency = defaultStartConcurrency
	}
	critical := make(map[string]struct{}, len(opts.CriticalModules))
	for _, name := range opts.CriticalModules {
		critical[name] = struct{}{}
	}
	return &Manager{
		logger:           logger,
		container:        opts.Container,
		events:           opts.Events,
		critical:         critical,
		startConcurrency: concurrency,
		factories:        make(map[string]*Factory),
		modules:          make(map[string]*Info),
		deps:             make(map[string][]string),
		healthLoops:      make(map[string]*healthLoop),
	}
}

// RegisterFactory makes a constructor available under the given name.
// Registering modules referencing unknown factory names fails with LoadError.
func (m *Manager) RegisterFactory(name string, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.factories[name]; ok {
		m.logger.Warn("factory already registered, replacing", zap.String("factory", name))
	}
	f := factory
	m.factories[name] = &f
}

// RegisterModule validates the config, resolves its factory, and inserts an
// Uninitialized Info into the registry. An existing registration under the
// same name is overwritten with a warning.
func (m *Manager) RegisterModule(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("register module: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	factory, ok := m.factories[cfg.Factory]
	if !ok {
		return &LoadError{Module: cfg.Name, Factory: cfg.Factory}
	}
	if _, exists := m.modules[cfg.Name]; exists {
		m.logger.Warn("module already registered, replacing", zap.String("module", cfg.Name))
	} else {
		m.order = append(m.order, cfg.Name)
	}
	m.modules[cfg.Name] = newInfo(cfg.Name, factory, cfg)
	m.deps[cfg.Name] = append([]string(nil), cfg.Dependencies...)

	m.logger.Info("module registered",
		zap.String("module", cfg.Name),
		zap.Strings("dependencies", cfg.Dependencies),
	)
	return nil
}

// UnregisterModule removes a module from the registry, cancelling its
// health-check loop and stopping it first when active.
func (m *Manager) UnregisterModule(ctx context.Context, name string) error {
	m.mu.Lock()
	info, ok := m.modules[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unregister %q: %w", name, ErrUnknownModule)
	}

	m.cancelHealthLoop(ctx, name, true)
	if info.State().IsActive() {
		m.stopModule(ctx, info)
	}

	m.mu.Lock()
	delete(m.modules, name)
	delete(m.deps, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.logger.Info("module unregistered", zap.String("module", name))
	return nil
}

// GetModule returns a point-in-time status snapshot for one module.
func (m *Manager) GetModule(name string) (Snapshot, bool) {
	m.mu.Lock()
	info, ok := m.modules[name]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return info.Snapshot(), true
}

// ListModules returns every registered module name in registration order.
func (m *Manager) ListModules() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// ModulesByState returns the names of modules currently in the given state.
func (m *Manager) ModulesByState(s State) []string {
	m.mu.Lock()
	infos := make([]*Info, 0, len(m.order))
	for _, name := range m.order {
		infos = append(infos, m.modules[name])
	}
	m.mu.Unlock()

	var names []string
	for _, info := range infos {
		if info.State() == s {
			names = append(names, info.Name())
		}
	}
	return names
}

// Status returns snapshots for every registered module, keyed by name.
func (m *Manager) Status() map[string]Snapshot {
	m.mu.Lock()
	infos := make([]*Info, 0, len(m.modules))
	for _, info := range m.modules {
		infos = append(infos, info)
	}
	m.mu.Unlock()

	status := make(map[string]Snapshot, len(infos))
	for _, info := range infos {
		status[info.Name()] = info.Snapshot()
	}
	return status
}

// IsRunning reports whether StartAll has completed without a matching
// StopAll.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ValidateDependencyGraph checks the registered modules for dependency
// cycles and references to unregistered modules. It is read-only and safe to
// call at any time.
func (m *Manager) ValidateDependencyGraph() error {
	m.mu.Lock()
	deps := make(map[string][]string, len(m.deps))
	for name, d := range m.deps {
		deps[name] = append([]string(nil), d...)
	}
	m.mu.Unlock()
	return validateGraph(deps)
}

// startSignal lets start tasks wait on their dependencies: exactly one of
// the two channels is closed when the dependency's start task finishes.
type startSignal struct {
	running chan struct{}
	failed  chan struct{}
}

// StartAll validates the dependency graph and starts every enabled module.
// Modules are stable-sorted by StartupOrder and started concurrently under a
// bounded semaphore; each start task waits for its declared dependencies to
// come up before attempting its own start, so a module never reaches Running
// ahead of a dependency. Failures of critical modules abort the call with a
// StartError naming all of them; non-critical failures leave the module in
// Error state and the call succeeds.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.logger.Warn("module manager is already running")
		return ErrAlreadyRunning
	}

	deps := make(map[string][]string, len(m.deps))
	for name, d := range m.deps {
		deps[name] = append([]string(nil), d...)
	}
	m.mu.Unlock()

	if err := validateGraph(deps); err != nil {
		return err
	}

	m.mu.Lock()
	m.running = true
	infos := make([]*Info, 0, len(m.order))
	for _, name := range m.order {
		if info := m.modules[name]; info != nil && info.Config().Enabled {
			infos = append(infos, info)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(infos, func(a, b int) bool {
		return infos[a].Config().StartupOrder < infos[b].Config().StartupOrder
	})

	m.logger.Info("starting modules", zap.Int("count", len(infos)))

	signals := make(map[string]*startSignal, len(infos))
	for _, info := range infos {
		signals[info.Name()] = &startSignal{
			running: make(chan struct{}),
			failed:  make(chan struct{}),
		}
	}

	sem := make(chan struct{}, m.startConcurrency)
	var wg sync.WaitGroup
	var resultMu sync.Mutex
	var criticalFailed []string

	for _, info := range infos {
		wg.Add(1)
		go func(info *Info) {
			defer wg.Done()
			sig := signals[info.Name()]
			if err := m.startTask(ctx, info, signals, sem); err != nil {
				close(sig.failed)
				m.logger.Error("module failed to start",
					zap.String("module", info.Name()),
					zap.Error(err),
				)
				if _, ok := m.critical[info.Name()]; ok {
					resultMu.Lock()
					criticalFailed = append(criticalFailed, info.Name())
					resultMu.Unlock()
				}
				return
			}
			close(sig.running)
		}(info)
	}
	wg.Wait()

	if len(criticalFailed) > 0 {
		sort.Strings(criticalFailed)
		return &StartError{Critical: criticalFailed}
	}
	m.logger.Info("all modules started")
	return nil
}

// startTask waits for the module's dependencies to settle, acquires a
// concurrency slot, and runs the start sequence. Dependency failures are
// surfaced by startModule's liveness check, which sees the dependency's
// actual state.
func (m *Manager) startTask(ctx context.Context, info *Info, signals map[string]*startSignal, sem chan struct{}) error {
	for _, dep := range info.Config().Dependencies {
		sig, ok := signals[dep]
		if !ok {
			// Dependency not part of this startup run (disabled); the
			// liveness check below reports it.
			continue
		}
		select {
		case <-sig.running:
		case <-sig.failed:
		case <-ctx.Done():
		}
	}

	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		err := fmt.Errorf("start canceled: %w", ctx.Err())
		info.RecordError(err)
		return err
	}

	return m.startModule(ctx, info)
}

// startModule runs the start sequence for a single module: state gate,
// dependency-liveness check, construction through the DI resolver,
// Initialize, Start, then Running plus a fresh health-check loop. Any
// failure records the error, leaves the module in Error state, and returns a
// StartError wrapping the cause.
func (m *Manager) startModule(ctx context.Context, info *Info) error {
	cfg := info.Config()
	if !cfg.Enabled {
		m.logger.Debug("module disabled, skipping start", zap.String("module", info.Name()))
		return nil
	}

	state := info.State()
	if state.IsActive() {
		m.logger.Warn("module is already active",
			zap.String("module", info.Name()),
			zap.String("state", state.String()),
		)
		return nil
	}
	if !state.CanStart() {
		err := &StartError{
			Module: info.Name(),
			Err:    fmt.Errorf("cannot start from state %q", state),
		}
		info.RecordError(err)
		return err
	}

	if unmet := m.unmetDependencies(cfg.Dependencies); len(unmet) > 0 {
		err := &DependencyError{Module: info.Name(), Unmet: unmet}
		info.RecordError(err)
		return err
	}

	info.setState(StateStarting)

	instance, err := info.factory.construct(ctx, m.container)
	if err != nil {
		initErr := &InitializationError{Module: info.Name(), Err: err}
		info.RecordError(initErr)
		m.publishError(info.Name(), initErr)
		return &StartError{Module: info.Name(), Err: initErr}
	}
	info.setInstance(instance)

	if err := instance.Initialize(ctx, cfg.Settings); err != nil {
		startErr := &StartError{Module: info.Name(), Err: fmt.Errorf("initialize: %w", err)}
		info.RecordError(startErr)
		m.publishError(info.Name(), startErr)
		return startErr
	}
	info.setState(StateInitialized)

	if err := instance.Start(ctx); err != nil {
		startErr := &StartError{Module: info.Name(), Err: fmt.Errorf("start: %w", err)}
		info.RecordError(startErr)
		m.publishError(info.Name(), startErr)
		return startErr
	}

	info.markStarted()
	m.publish(bus.New(bus.TypeModuleStarted, info.Name()))
	m.startHealthLoop(info)

	m.logger.Info("module started", zap.String("module", info.Name()))
	return nil
}

// unmetDependencies returns every declared dependency that is not Running,
// with its current state or "not found". The check is synchronous: no module
// call sits between it and the transition to Starting.
func (m *Manager) unmetDependencies(dependencies []string) []UnmetDependency {
	var unmet []UnmetDependency
	for _, dep := range dependencies {
		m.mu.Lock()
		depInfo := m.modules[dep]
		m.mu.Unlock()
		if depInfo == nil {
			unmet = append(unmet, UnmetDependency{Name: dep, State: "not found"})
			continue
		}
		if s := depInfo.State(); s != StateRunning {
			unmet = append(unmet, UnmetDependency{Name: dep, State: s.String()})
		}
	}
	return unmet
}

// stopModule transitions an active module through Stopping and invokes its
// Stop. Stop errors are recorded and logged, never propagated.
func (m *Manager) stopModule(ctx context.Context, info *Info) {
	state := info.State()
	if !state.CanStop() {
		m.logger.Debug("module is not running",
			zap.String("module", info.Name()),
			zap.String("state", state.String()),
		)
		return
	}

	info.setState(StateStopping)
	if instance := info.getInstance(); instance != nil {
		if err := instance.Stop(ctx); err != nil {
			info.RecordError(fmt.Errorf("stop: %w", err))
			m.publishError(info.Name(), err)
			m.logger.Error("module stop failed",
				zap.String("module", info.Name()),
				zap.Error(err),
			)
			return
		}
	}
	info.markStopped()
	m.publish(bus.New(bus.TypeModuleStopped, info.Name()))
	m.logger.Info("module stopped", zap.String("module", info.Name()))
}

// Restart stops an active module (best effort), waits the configured restart
// delay, and starts it again. Unknown names are a warning no-op. The restart
// budget is accounted here: every restart attempt, automatic or explicit,
// increments the shared counter.
func (m *Manager) Restart(ctx context.Context, name string) error {
	m.mu.Lock()
	info := m.modules[name]
	m.mu.Unlock()
	if info == nil {
		m.logger.Warn("restart requested for unknown module", zap.String("module", name))
		return nil
	}
	if !info.CanRestart() {
		m.logger.Error("module has exceeded maximum restart attempts",
			zap.String("module", name),
			zap.Int("max_restart_attempts", info.Config().MaxRestartAttempts),
		)
		return fmt.Errorf("restart %q: restart budget exhausted", name)
	}

	attempt := info.incrementRestartCount()
	m.logger.Info("restarting module",
		zap.String("module", name),
		zap.Int("attempt", attempt),
	)

	if info.State().IsActive() {
		m.cancelHealthLoop(ctx, name, false)
		m.stopModule(ctx, info)
	}

	if delay := info.Config().RestartDelay; delay > 0 {
		if err := sleepCtx(ctx, delay); err != nil {
			return fmt.Errorf("restart %q: %w", name, err)
		}
	}

	if err := m.startModule(ctx, info); err != nil {
		return fmt.Errorf("restart %q: %w", name, err)
	}
	return nil
}

// StopAll stops every active module in ShutdownOrder, cancelling each
// module's health-check loop before its Stop is invoked. The context bounds
// the whole call: modules still active at the deadline are left alone and
// reported in the returned error rather than forced.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.logger.Warn("module manager is not running")
		return nil
	}
	m.running = false
	infos := make([]*Info, 0, len(m.order))
	for _, name := range m.order {
		if info := m.modules[name]; info != nil && info.State().CanStop() {
			infos = append(infos, info)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(infos, func(a, b int) bool {
		return infos[a].Config().ShutdownOrder < infos[b].Config().ShutdownOrder
	})

	m.logger.Info("stopping modules", zap.Int("count", len(infos)))

	var stillRunning []string
	for i, info := range infos {
		if ctx.Err() != nil {
			for _, rest := range infos[i:] {
				stillRunning = append(stillRunning, rest.Name())
			}
			break
		}
		m.cancelHealthLoop(ctx, info.Name(), true)
		m.stopModule(ctx, info)
	}

	// Tear down any loops left over from modules that were never stopped
	// individually (e.g. restarted while shutdown was in progress).
	m.mu.Lock()
	if m.baseCancel != nil {
		m.baseCancel()
		m.baseCtx = nil
		m.baseCancel = nil
	}
	m.healthLoops = make(map[string]*healthLoop)
	m.mu.Unlock()

	if len(stillRunning) > 0 {
		m.logger.Warn("modules still running after shutdown deadline",
			zap.Strings("modules", stillRunning),
		)
		return fmt.Errorf("modules still running after shutdown deadline: %s: %w",
			strings.Join(stillRunning, ", "), ctx.Err())
	}
	m.logger.Info("all modules stopped")
	return nil
}

// lifecycleContext returns the context that outlives individual health-check
// loops, so a restart driven from inside a loop is not cut short by that
// loop's own cancellation.
func (m *Manager) lifecycleContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.baseCtx != nil && m.baseCtx.Err() == nil {
		return m.baseCtx
	}
	return context.Background()
}

func (m *Manager) publish(evt bus.Event) {
	if m.events != nil {
		m.events.Publish(evt)
	}
}

func (m *Manager) publishError(name string, err error) {
	if m.events == nil {
		return
	}
	evt := bus.New(bus.TypeModuleError, name)
	evt.Note = err.Error()
	m.events.Publish(evt)
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
