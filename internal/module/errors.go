package module

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for precondition failures.
var (
	// ErrAlreadyRunning is returned by StartAll when orchestration is
	// already in progress.
	ErrAlreadyRunning = errors.New("module manager is already running")

	// ErrNotRunning is returned by StopAll when nothing was started.
	ErrNotRunning = errors.New("module manager is not running")

	// ErrUnknownModule is returned for operations against names that were
	// never registered.
	ErrUnknownModule = errors.New("module not registered")
)

// LoadError reports a factory name that could not be resolved at
// registration time.
type LoadError struct {
	Module  string
	Factory string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("module %q: no factory registered under %q", e.Module, e.Factory)
}

// CycleError reports a dependency cycle discovered during graph validation.
// Path holds every node on the cycle once, terminated by a repeat of the
// start node, e.g. [a b c a].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular module dependency: %s", strings.Join(e.Path, " -> "))
}

// MissingDependency pairs a module with a dependency name absent from the
// registry.
type MissingDependency struct {
	Module     string
	Dependency string
}

func (m MissingDependency) String() string {
	return fmt.Sprintf("%s -> %s", m.Module, m.Dependency)
}

// MissingDependencyError enumerates every unregistered dependency found
// during graph validation, not just the first.
type MissingDependencyError struct {
	Missing []MissingDependency
}

func (e *MissingDependencyError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		parts[i] = m.String()
	}
	return fmt.Sprintf("missing module dependencies: %s", strings.Join(parts, ", "))
}

// UnmetDependency describes a declared dependency that was not Running at
// start time, with its observed state or "not found".
type UnmetDependency struct {
	Name  string
	State string
}

func (u UnmetDependency) String() string {
	return fmt.Sprintf("%s (%s)", u.Name, u.State)
}

// DependencyError reports the dependency-liveness check failing for a module
// start, listing every unmet dependency.
type DependencyError struct {
	Module string
	Unmet  []UnmetDependency
}

func (e *DependencyError) Error() string {
	parts := make([]string, len(e.Unmet))
	for i, u := range e.Unmet {
		parts[i] = u.String()
	}
	return fmt.Sprintf("module %q has unmet dependencies: %s", e.Module, strings.Join(parts, ", "))
}

// InitializationError reports a failure to construct a module instance,
// including unresolvable constructor parameters.
type InitializationError struct {
	Module string
	Err    error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("module %q initialization failed: %v", e.Module, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// StartError wraps a failure anywhere in a module's start sequence. For the
// aggregate form raised by StartAll, Module is empty and Critical lists the
// critical modules that failed.
type StartError struct {
	Module   string
	Critical []string
	Err      error
}

func (e *StartError) Error() string {
	if len(e.Critical) > 0 {
		return fmt.Sprintf("critical modules failed to start: %s", strings.Join(e.Critical, ", "))
	}
	return fmt.Sprintf("module %q failed to start: %v", e.Module, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }
