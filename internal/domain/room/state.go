// Package room provides the Room domain entity and its schedule.
package room

// State represents the room lifecycle state.
type State int

const (
	StateClosed      State = iota // Room is closed, no activity
	StateOpen                     // Room is open for submissions and bids
	StateMaintenance              // Administratively offline; schedule automation skips it
	StatePaused                   // Temporarily suspended; schedule automation skips it
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateMaintenance:
		return "maintenance"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Automated reports whether schedule automation may transition this state.
// Only Open and Closed participate in the open/close sweep.
func (s State) Automated() bool {
	return s == StateOpen || s == StateClosed
}
