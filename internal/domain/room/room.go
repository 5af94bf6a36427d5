package room

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ErrAlreadyInState is returned by TransitionTo when the room is already in
// the requested state. It marks a no-op condition, not a failure to apply.
var ErrAlreadyInState = errors.New("room already in requested state")

// Room represents a venue owning one queue and a schedule-driven lifecycle.
// State is mutated only through TransitionTo, which both the schedule
// coordinator and administrative overrides go through.
type Room struct {
	ID        string    // Room identity
	Name      string    // Display name
	State     State     // Lifecycle state
	Schedule  Schedule  // Daily open window
	QueueID   string    // Owned queue
	CreatedAt time.Time // Creation time
}

// New creates a closed room with the given schedule.
func New(id, name, queueID string, schedule Schedule, createdAt time.Time) *Room {
	return &Room{
		ID:        id,
		Name:      name,
		State:     StateClosed,
		Schedule:  schedule,
		QueueID:   queueID,
		CreatedAt: createdAt,
	}
}

// TransitionTo moves the room into the target state. Transitioning into the
// current state is reported as ErrAlreadyInState and not applied.
func (r *Room) TransitionTo(target State) error {
	if r.State == target {
		return errors.Wrapf(ErrAlreadyInState, "room %s state %s", r.ID, target)
	}
	r.State = target
	return nil
}
