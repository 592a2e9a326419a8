package module

// State describes where a module sits in its lifecycle.
type State int

// Lifecycle states, in rough chronological order. A module begins
// Uninitialized at registration and only leaves Stopped or Error through an
// explicit start or unregister.
const (
	StateUninitialized State = iota
	StateInitialized
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateError
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StateInitialized:   "initialized",
	StateStarting:      "starting",
	StateRunning:       "running",
	StateStopping:      "stopping",
	StateStopped:       "stopped",
	StateError:         "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsActive reports whether the module is starting or already running.
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning
}

// IsTerminal reports whether the module has reached a resting state.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateError
}

// CanStart reports whether a start attempt is legal from this state.
func (s State) CanStart() bool {
	return s == StateUninitialized || s == StateInitialized || s == StateStopped
}

// CanStop reports whether a stop attempt is legal from this state.
func (s State) CanStop() bool {
	return s.IsActive()
}
