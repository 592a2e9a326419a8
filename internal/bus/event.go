// Package bus carries module lifecycle events from the orchestrator to
// pluggable sinks without blocking the emitter.
package bus

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type denotes the kind of lifecycle milestone an Event records.
type Type string

// Supported event types.
const (
	TypeModuleStarted Type = "MODULE_STARTED"
	TypeModuleStopped Type = "MODULE_STOPPED"
	TypeModuleError   Type = "MODULE_ERROR"
	TypeHealthCheck   Type = "HEALTH_CHECK"
)

// Event is one lifecycle notification. Events are fire-and-forget: the
// orchestrator never learns whether a sink consumed them.
type Event struct {
	// ID uniquely identifies the event instance.
	ID uuid.UUID `json:"id"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Type denotes which lifecycle milestone occurred.
	Type Type `json:"type"`
	// Module is the registry name of the module concerned.
	Module string `json:"module"`
	// Status carries the health status for HEALTH_CHECK events.
	Status string `json:"status,omitempty"`
	// Note holds low-volume context such as error text.
	Note string `json:"note,omitempty"`
}

// New stamps a fresh event with an ID and timestamp.
func New(t Type, moduleName string) Event {
	return Event{
		ID:     uuid.New(),
		TS:     time.Now().UTC(),
		Type:   t,
		Module: moduleName,
	}
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.Module == "" {
		return errors.New("module name is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Type {
	case TypeModuleStarted, TypeModuleStopped, TypeModuleError:
	case TypeHealthCheck:
		if e.Status == "" {
			return errors.New("health check event requires status")
		}
	default:
		return errors.New("unknown event type")
	}
	return nil
}
