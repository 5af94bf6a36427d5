package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_JoinLeave(t *testing.T) {
	r := NewRegistry(nil)

	r.Join("room-1", "c1")
	r.Join("room-1", "c2")
	assert.Equal(t, 2, r.Count("room-1"))

	r.Leave("room-1", "c1")
	assert.Equal(t, 1, r.Count("room-1"))

	// Last leave removes the room entry entirely
	r.Leave("room-1", "c2")
	assert.Equal(t, 0, r.Count("room-1"))
	assert.Empty(t, r.ActiveRooms())
}

func TestRegistry_JoinIdempotent(t *testing.T) {
	r := NewRegistry(nil)

	r.Join("room-1", "c1")
	r.Join("room-1", "c1")
	assert.Equal(t, 1, r.Count("room-1"))
}

func TestRegistry_RedundantLeaveIsNoop(t *testing.T) {
	r := NewRegistry(nil)

	r.Leave("room-1", "ghost")
	assert.Equal(t, 0, r.Count("room-1"))

	r.Join("room-1", "c1")
	r.Leave("room-1", "ghost")
	assert.Equal(t, 1, r.Count("room-1"))
}

func TestRegistry_LeaveAll(t *testing.T) {
	r := NewRegistry(nil)

	r.Join("room-1", "c1")
	r.Join("room-2", "c1")
	r.Join("room-2", "c2")
	r.Join("room-3", "c2")

	affected := r.LeaveAll("c1")
	assert.ElementsMatch(t, []string{"room-1", "room-2"}, affected)

	// room-1 emptied and was reaped; room-2 keeps c2
	assert.Equal(t, 0, r.Count("room-1"))
	assert.Equal(t, 1, r.Count("room-2"))
	assert.ElementsMatch(t, []string{"room-2", "room-3"}, r.ActiveRooms())
}

func TestRegistry_ObserverNotified(t *testing.T) {
	var mu sync.Mutex
	changed := make(map[string]int)
	r := NewRegistry(func(roomID string) {
		mu.Lock()
		defer mu.Unlock()
		changed[roomID]++
	})

	r.Join("room-1", "c1")
	r.Join("room-1", "c1") // idempotent, no change
	r.Leave("room-1", "c1")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, changed["room-1"])
}

func TestRegistry_ConcurrentJoinsAndLeaves(t *testing.T) {
	r := NewRegistry(nil)

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			conn := string(rune('a' + n%8))
			r.Join("room-1", conn)
			r.Join("room-2", conn)
			r.Leave("room-2", conn)
		}(i)
	}
	wg.Wait()

	// All 8 distinct connections ended up joined to room-1 and out of room-2
	assert.Equal(t, 8, r.Count("room-1"))
	assert.Equal(t, 0, r.Count("room-2"))
	assert.Equal(t, []string{"room-1"}, r.ActiveRooms())
}
