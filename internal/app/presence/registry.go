// Package presence provides the per-room registry of live connections.
package presence

import (
	"sort"
	"sync"

	zlog "github.com/rs/zerolog/log"
)

// roomPresence is the connection set for one room, with its own lock so
// different rooms never contend. removed marks an entry that has been reaped
// from the registry; holders of a stale pointer must re-fetch.
type roomPresence struct {
	mu      sync.Mutex
	conns   map[string]struct{}
	removed bool
}

// Observer is notified after any membership change in a room. Used to emit
// presence_changed events; may be nil.
type Observer func(roomID string)

// Registry is a thread-safe mapping of room to connection set. Entries are
// created on first join and removed entirely on last leave to bound memory.
// Counts and room listings are point-in-time snapshots and may be stale by
// the time the caller acts on them.
type Registry struct {
	mu       sync.RWMutex // guards the rooms map, not set contents
	rooms    map[string]*roomPresence
	observer Observer
}

// NewRegistry creates an empty presence registry.
func NewRegistry(observer Observer) *Registry {
	return &Registry{
		rooms:    make(map[string]*roomPresence),
		observer: observer,
	}
}

// Join idempotently adds the connection to the room's set.
func (r *Registry) Join(roomID, connID string) {
	for {
		rp := r.room(roomID, true)
		rp.mu.Lock()
		if rp.removed {
			// Reaped between fetch and lock; take a fresh entry.
			rp.mu.Unlock()
			continue
		}
		_, present := rp.conns[connID]
		rp.conns[connID] = struct{}{}
		rp.mu.Unlock()

		if !present {
			zlog.Debug().Msgf("presence: join room=%s conn=%s", roomID, connID)
			r.notify(roomID)
		}
		return
	}
}

// Leave removes the connection from the room's set. When the set becomes
// empty the room entry itself is removed. Redundant leaves are no-ops.
func (r *Registry) Leave(roomID, connID string) {
	rp := r.room(roomID, false)
	if rp == nil {
		return
	}

	rp.mu.Lock()
	_, present := rp.conns[connID]
	delete(rp.conns, connID)
	empty := len(rp.conns) == 0
	rp.mu.Unlock()

	if empty {
		r.reap(roomID)
	}
	if present {
		zlog.Debug().Msgf("presence: leave room=%s conn=%s", roomID, connID)
		r.notify(roomID)
	}
}

// LeaveAll removes the connection from every room it is in and returns the
// affected room IDs. Used on abrupt disconnect.
func (r *Registry) LeaveAll(connID string) []string {
	r.mu.RLock()
	roomIDs := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		roomIDs = append(roomIDs, id)
	}
	r.mu.RUnlock()

	var affected []string
	for _, roomID := range roomIDs {
		rp := r.room(roomID, false)
		if rp == nil {
			continue
		}

		rp.mu.Lock()
		_, present := rp.conns[connID]
		delete(rp.conns, connID)
		empty := len(rp.conns) == 0
		rp.mu.Unlock()

		if empty {
			r.reap(roomID)
		}
		if present {
			affected = append(affected, roomID)
			r.notify(roomID)
		}
	}

	if len(affected) > 0 {
		zlog.Debug().Msgf("presence: disconnect conn=%s rooms=%d", connID, len(affected))
	}
	return affected
}

// Count returns the number of connections in the room.
func (r *Registry) Count(roomID string) int {
	rp := r.room(roomID, false)
	if rp == nil {
		return 0
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	return len(rp.conns)
}

// ActiveRooms returns the IDs of rooms with at least one connection, sorted.
func (r *Registry) ActiveRooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) room(roomID string, create bool) *roomPresence {
	r.mu.RLock()
	rp := r.rooms[roomID]
	r.mu.RUnlock()
	if rp != nil || !create {
		return rp
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rp = r.rooms[roomID]; rp == nil {
		rp = &roomPresence{conns: make(map[string]struct{})}
		r.rooms[roomID] = rp
	}
	return rp
}

// reap removes the room entry if it is still empty. Lock order is always
// registry then room.
func (r *Registry) reap(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rp := r.rooms[roomID]
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if len(rp.conns) == 0 {
		rp.removed = true
		delete(r.rooms, roomID)
	}
}

func (r *Registry) notify(roomID string) {
	if r.observer != nil {
		r.observer(roomID)
	}
}
