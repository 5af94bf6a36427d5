// Package rooms provides the in-memory room store: rooms plus their queues,
// behind the read/write operations the core needs at its persistence
// boundary.
package rooms

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/SabaVan/kame-sub000/internal/app/queue"
	"github.com/SabaVan/kame-sub000/internal/domain/room"
)

// Errors
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

// Store owns rooms and their queues. Room state changes go through the
// room's transition guard under the store lock; queues carry their own locks
// and are safe to hand out.
type Store struct {
	mu     sync.RWMutex
	rooms  map[string]*room.Room
	queues map[string]*queue.Queue // keyed by room ID
	now    func() time.Time
}

// NewStore creates an empty room store.
func NewStore() *Store {
	return &Store{
		rooms:  make(map[string]*room.Room),
		queues: make(map[string]*queue.Queue),
		now:    time.Now,
	}
}

// Create registers a room with a fresh queue.
func (s *Store) Create(roomID, name string, schedule room.Schedule) (room.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; ok {
		return room.Room{}, errors.Wrapf(ErrRoomExists, "room %s", roomID)
	}

	q := queue.New(uuid.New().String(), roomID)
	r := room.New(roomID, name, q.ID(), schedule, s.now())
	s.rooms[roomID] = r
	s.queues[roomID] = q
	return *r, nil
}

// Get returns a snapshot of the room.
func (s *Store) Get(roomID string) (room.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return room.Room{}, errors.Wrapf(ErrRoomNotFound, "room %s", roomID)
	}
	return *r, nil
}

// Queue returns the room's queue.
func (s *Store) Queue(roomID string) (*queue.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.queues[roomID]
	if !ok {
		return nil, errors.Wrapf(ErrRoomNotFound, "room %s", roomID)
	}
	return q, nil
}

// All returns snapshots of every room.
func (s *Store) All() []room.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]room.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		result = append(result, *r)
	}
	return result
}

// SetState transitions the room through its state guard. A transition into
// the current state returns room.ErrAlreadyInState and is not applied.
func (s *Store) SetState(roomID string, target room.State) (room.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return room.Room{}, errors.Wrapf(ErrRoomNotFound, "room %s", roomID)
	}
	if err := r.TransitionTo(target); err != nil {
		return *r, err
	}
	return *r, nil
}

// Delete removes the room and cascades to its queue.
func (s *Store) Delete(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return errors.Wrapf(ErrRoomNotFound, "room %s", roomID)
	}
	delete(s.rooms, roomID)
	delete(s.queues, roomID)
	return nil
}
