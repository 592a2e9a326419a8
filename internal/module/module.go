// Package module implements the lifecycle orchestrator for the collector's
// pluggable modules: registration, dependency-graph validation, ordered
// concurrent startup, periodic health checking with bounded restarts, and
// graceful shutdown.
package module

import "context"

// Health status tokens recorded against a module. Anything other than
// StatusHealthy counts as unhealthy for restart purposes.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusUnknown   = "unknown"
	StatusError     = "error"
)

// Health is the structured result of a module health check. An empty Status
// is normalized to healthy, matching modules that only report on failure.
type Health struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// Normalize maps the raw health result to a status token.
func (h Health) Normalize() string {
	if h.Status == "" {
		return StatusHealthy
	}
	return h.Status
}

// Module is the lifecycle contract every orchestrated unit satisfies. The
// orchestrator is the only caller of these methods and never invokes two of
// them concurrently for the same module.
type Module interface {
	// Name returns the module's self-reported name, used for logging only;
	// the registry key is the configured name.
	Name() string

	// Initialize prepares the module with its opaque configuration payload.
	// It is called once after construction, before Start.
	Initialize(ctx context.Context, config map[string]any) error

	// Start begins the module's runtime work. It must return promptly,
	// spawning goroutines for long-running work.
	Start(ctx context.Context) error

	// Stop is best effort; errors are logged, never propagated.
	Stop(ctx context.Context) error

	// HealthCheck reports current health. The caller bounds it with a
	// timeout, so implementations must honor ctx.
	HealthCheck(ctx context.Context) (Health, error)
}

// Container is the narrow dependency-injection capability the constructor
// resolver consumes. Values are looked up by parameter name.
type Container interface {
	Has(name string) bool
	Get(ctx context.Context, name string) (any, error)
}
