package notification

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStream records everything sent to it.
type captureStream struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *captureStream) Send(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *captureStream) received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Event, len(s.events))
	copy(result, s.events)
	return result
}

func TestManager_PublishToRoomSubscribers(t *testing.T) {
	m := NewManager()
	inRoom := &captureStream{}
	otherRoom := &captureStream{}

	m.Subscribe("room-1", inRoom)
	m.Subscribe("room-2", otherRoom)

	m.Publish(Event{Kind: EventSongStarted, RoomID: "room-1", ItemID: "item-1", Title: "Song"})

	got := inRoom.received()
	require.Len(t, got, 1)
	assert.Equal(t, EventSongStarted, got[0].Kind)
	assert.Equal(t, "item-1", got[0].ItemID)
	assert.Empty(t, otherRoom.received())
}

func TestManager_SequenceNumbersIncrease(t *testing.T) {
	m := NewManager()
	stream := &captureStream{}
	m.Subscribe("room-1", stream)

	m.Publish(Event{Kind: EventSongStarted, RoomID: "room-1"})
	m.Publish(Event{Kind: EventSongEnded, RoomID: "room-1"})
	m.Publish(Event{Kind: EventPresenceChanged, RoomID: "room-1"})

	got := stream.received()
	require.Len(t, got, 3)
	assert.Less(t, got[0].SequenceNo, got[1].SequenceNo)
	assert.Less(t, got[1].SequenceNo, got[2].SequenceNo)
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	stream := &captureStream{}

	id := m.Subscribe("room-1", stream)
	assert.Equal(t, 1, m.SubscriberCount("room-1"))

	m.Unsubscribe(id)
	assert.Equal(t, 0, m.SubscriberCount("room-1"))

	m.Publish(Event{Kind: EventSongStarted, RoomID: "room-1"})
	assert.Empty(t, stream.received())
}

func TestManager_FailingStreamDoesNotBlockOthers(t *testing.T) {
	m := NewManager()
	broken := &captureStream{err: errors.New("gone")}
	healthy := &captureStream{}

	m.Subscribe("room-1", broken)
	m.Subscribe("room-1", healthy)

	m.Publish(Event{Kind: EventSongEnded, RoomID: "room-1", ItemID: "item-1"})

	require.Len(t, healthy.received(), 1)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "song_started", EventSongStarted.String())
	assert.Equal(t, "song_ended", EventSongEnded.String())
	assert.Equal(t, "presence_changed", EventPresenceChanged.String())
}
