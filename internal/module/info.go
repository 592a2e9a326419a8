package module

import (
	"sync"
	"time"
)

// Info is the orchestrator's mutable record for one registered module. It is
// created at registration and lives until an explicit unregister. Each Info
// carries its own lock so health-check loops never contend on the manager's
// registry lock.
type Info struct {
	mu sync.Mutex

	name     string
	factory  *Factory
	instance Module
	config   Config

	state           State
	startTime       time.Time
	stopTime        time.Time
	restartCount    int
	lastHealthCheck time.Time
	healthStatus    string
	errorMessage    string
}

func newInfo(name string, factory *Factory, cfg Config) *Info {
	return &Info{
		name:         name,
		factory:      factory,
		config:       cfg,
		state:        StateUninitialized,
		healthStatus: StatusUnknown,
	}
}

// Name returns the registry key for this module.
func (i *Info) Name() string { return i.name }

// Config returns the module's validated configuration.
func (i *Info) Config() Config {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.config
}

// State returns the current lifecycle state.
func (i *Info) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Info) setState(s State) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
}

// RecordError marks the module failed and remembers the message.
func (i *Info) RecordError(err error) {
	i.mu.Lock()
	i.state = StateError
	if err != nil {
		i.errorMessage = err.Error()
	}
	i.mu.Unlock()
}

// RecordHealthCheck stores the outcome of one health-check iteration.
func (i *Info) RecordHealthCheck(status string) {
	i.mu.Lock()
	i.lastHealthCheck = time.Now()
	i.healthStatus = status
	i.mu.Unlock()
}

// recordHealthError stores a failed health-check iteration: error status
// plus the error text, without touching the lifecycle state.
func (i *Info) recordHealthError(err error) {
	i.mu.Lock()
	i.lastHealthCheck = time.Now()
	i.healthStatus = StatusError
	if err != nil {
		i.errorMessage = err.Error()
	}
	i.mu.Unlock()
}

// CanRestart reports whether the restart budget still has room.
func (i *Info) CanRestart() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.restartCount < i.config.MaxRestartAttempts
}

// IsHealthy reports a running module whose last check was healthy or has not
// been checked yet.
func (i *Info) IsHealthy() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state == StateRunning &&
		(i.healthStatus == StatusHealthy || i.healthStatus == StatusUnknown)
}

// Uptime returns how long the module has been running, or zero when it is
// not.
func (i *Info) Uptime() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateRunning || i.startTime.IsZero() {
		return 0
	}
	return time.Since(i.startTime)
}

// Snapshot is a point-in-time copy of a module's observable status, suitable
// for JSON serialization by callers.
type Snapshot struct {
	Name            string        `json:"name"`
	State           string        `json:"state"`
	Enabled         bool          `json:"enabled"`
	Dependencies    []string      `json:"dependencies,omitempty"`
	StartTime       *time.Time    `json:"start_time,omitempty"`
	StopTime        *time.Time    `json:"stop_time,omitempty"`
	UptimeSeconds   float64       `json:"uptime_seconds"`
	RestartCount    int           `json:"restart_count"`
	LastHealthCheck *time.Time    `json:"last_health_check,omitempty"`
	HealthStatus    string        `json:"health_status"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	Interval        time.Duration `json:"-"`
}

// Snapshot returns a copy of the module's current status.
func (i *Info) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()

	snap := Snapshot{
		Name:         i.name,
		State:        i.state.String(),
		Enabled:      i.config.Enabled,
		Dependencies: append([]string(nil), i.config.Dependencies...),
		RestartCount: i.restartCount,
		HealthStatus: i.healthStatus,
		ErrorMessage: i.errorMessage,
		Interval:     i.config.HealthCheckInterval,
	}
	if !i.startTime.IsZero() {
		t := i.startTime
		snap.StartTime = &t
	}
	if !i.stopTime.IsZero() {
		t := i.stopTime
		snap.StopTime = &t
	}
	if !i.lastHealthCheck.IsZero() {
		t := i.lastHealthCheck
		snap.LastHealthCheck = &t
	}
	if i.state == StateRunning && !i.startTime.IsZero() {
		snap.UptimeSeconds = time.Since(i.startTime).Seconds()
	}
	return snap
}

// markStarted transitions to Running and clears any previous failure.
func (i *Info) markStarted() {
	i.mu.Lock()
	i.state = StateRunning
	i.startTime = time.Now()
	i.errorMessage = ""
	i.healthStatus = StatusUnknown
	i.mu.Unlock()
}

// markStopped transitions to Stopped and records the stop time.
func (i *Info) markStopped() {
	i.mu.Lock()
	i.state = StateStopped
	i.stopTime = time.Now()
	i.mu.Unlock()
}

func (i *Info) incrementRestartCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.restartCount++
	return i.restartCount
}

func (i *Info) getInstance() Module {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.instance
}

func (i *Info) setInstance(m Module) {
	i.mu.Lock()
	i.instance = m
	i.mu.Unlock()
}
