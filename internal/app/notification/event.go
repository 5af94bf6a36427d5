package notification

// EventKind represents a lifecycle event kind.
type EventKind int

const (
	EventSongStarted     EventKind = iota // A new item started playing
	EventSongEnded                        // The playing item finished
	EventPresenceChanged                  // A room's membership changed
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventSongStarted:
		return "song_started"
	case EventSongEnded:
		return "song_ended"
	case EventPresenceChanged:
		return "presence_changed"
	default:
		return "unknown"
	}
}

// Event is a room-scoped lifecycle notification, delivered at least once.
// ItemID and Title are set only for song events.
type Event struct {
	Kind       EventKind
	RoomID     string
	ItemID     string
	Title      string
	SequenceNo uint64
}
