package room

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInvalidSchedule is returned when a schedule's open and close times
// coincide, which would make the open window undecidable.
var ErrInvalidSchedule = errors.New("open and close times must differ")

// TimeOfDay is a wall-clock time of day in minutes since midnight, with no
// date or timezone component. All schedule times are normalized UTC values.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid time of day %q", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// TimeOfDayFrom extracts the UTC time of day from an instant.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	u := t.UTC()
	return TimeOfDay(u.Hour()*60 + u.Minute())
}

// String returns the "HH:MM" representation.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Schedule is a daily open window. OpenAt >= CloseAt denotes an overnight
// window that crosses midnight (e.g. 22:00-02:00).
type Schedule struct {
	OpenAt  TimeOfDay
	CloseAt TimeOfDay
}

// NewSchedule creates a schedule, rejecting zero-length windows.
func NewSchedule(openAt, closeAt TimeOfDay) (Schedule, error) {
	if openAt == closeAt {
		return Schedule{}, errors.Wrapf(ErrInvalidSchedule, "open_at=%s close_at=%s", openAt, closeAt)
	}
	return Schedule{OpenAt: openAt, CloseAt: closeAt}, nil
}

// ShouldBeOpen reports whether the room should be open at the given instant,
// comparing UTC time-of-day values only.
func (s Schedule) ShouldBeOpen(now time.Time) bool {
	t := TimeOfDayFrom(now)
	if s.OpenAt < s.CloseAt {
		// Same-day window.
		return s.OpenAt <= t && t < s.CloseAt
	}
	// Overnight window crossing midnight.
	return t >= s.OpenAt || t < s.CloseAt
}
