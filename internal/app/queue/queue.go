// Package queue provides the bid-ordered song queue for a room.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/SabaVan/kame-sub000/internal/domain/song"
)

// ErrItemNotFound is returned when the referenced queue item does not exist.
var ErrItemNotFound = errors.New("queue item not found")

// Queue is the ordered collection of queue items for one room. Items live in
// a map keyed by id; the currently-playing item is held as an id so that
// removing it can never leave a dangling reference.
//
// Total order: CurrentBid descending, then SubmittedAt ascending. A queue
// with all-zero bids degrades to FIFO by submission time.
type Queue struct {
	mu           sync.Mutex
	id           string
	roomID       string
	items        map[string]*song.QueueItem
	currentID    string
	playingSince time.Time
	now          func() time.Time
}

// New creates an empty queue for the given room.
func New(id, roomID string) *Queue {
	return &Queue{
		id:     id,
		roomID: roomID,
		items:  make(map[string]*song.QueueItem),
		now:    time.Now,
	}
}

// SetClock overrides the queue clock. Intended for tests.
func (q *Queue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// ID returns the queue's identity.
func (q *Queue) ID() string { return q.id }

// RoomID returns the owning room's identity.
func (q *Queue) RoomID() string { return q.roomID }

// Append adds an unbid item with a provisional position at the end of the
// queue. The position is corrected on the next reorder.
func (q *Queue) Append(item *song.QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item.CurrentBid = 0
	item.CurrentBidderID = ""
	item.Position = len(q.items) + 1
	q.items[item.ID] = item
}

// Reorder re-sorts all items by the total order and reassigns contiguous
// 1-based positions. Idempotent.
func (q *Queue) Reorder() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reorderLocked()
}

// Items returns item snapshots in ranked order, reordering first.
func (q *Queue) Items() []song.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	sorted := q.reorderLocked()
	result := make([]song.QueueItem, len(sorted))
	for i, it := range sorted {
		result[i] = *it
	}
	return result
}

// Len returns the number of items in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Item returns a snapshot of the identified item.
func (q *Queue) Item(itemID string) (song.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[itemID]
	if !ok {
		return song.QueueItem{}, errors.Wrapf(ErrItemNotFound, "item %s", itemID)
	}
	return *it, nil
}

// CurrentItem reorders and returns the top-ranked item without advancing the
// playing pointer. The second return is false when the queue is empty.
func (q *Queue) CurrentItem() (song.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sorted := q.reorderLocked()
	if len(sorted) == 0 {
		return song.QueueItem{}, false
	}
	return *sorted[0], true
}

// SelectNext reorders, then picks the top-ranked item excluding the one
// currently playing, marks it as playing and returns it. When nothing is
// playing the absolute top is picked. Returns false when no item remains.
func (q *Queue) SelectNext() (song.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, it := range q.reorderLocked() {
		if it.ID == q.currentID {
			continue
		}
		q.currentID = it.ID
		q.playingSince = q.now()
		zlog.Debug().Msgf("queue %s: selected item=%s title=%q bid=%d", q.id, it.ID, it.Song.Title, it.CurrentBid)
		return *it, true
	}
	return song.QueueItem{}, false
}

// NowPlaying returns the currently-playing item and the time it started.
func (q *Queue) NowPlaying() (song.QueueItem, time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[q.currentID]
	if !ok {
		return song.QueueItem{}, time.Time{}, false
	}
	return *it, q.playingSince, true
}

// ApplyBid sets the item's bid fields and reorders. The caller has already
// moved the funds; a higher concurrent bid must not be overwritten, so the
// strict-increase check is repeated here under the queue lock.
func (q *Queue) ApplyBid(itemID, bidderID string, amount int64) (song.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[itemID]
	if !ok {
		return song.QueueItem{}, errors.Wrapf(ErrItemNotFound, "item %s", itemID)
	}
	if amount <= it.CurrentBid {
		return song.QueueItem{}, errors.Newf("bid %d is not above current %d", amount, it.CurrentBid)
	}

	it.CurrentBid = amount
	it.CurrentBidderID = bidderID
	q.reorderLocked()
	return *it, nil
}

// Remove deletes the item. If it was the currently-playing item, the playing
// pointer is cleared so the next SelectNext picks from the full remaining
// order.
func (q *Queue) Remove(itemID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.items[itemID]; !ok {
		return errors.Wrapf(ErrItemNotFound, "item %s", itemID)
	}
	delete(q.items, itemID)
	if q.currentID == itemID {
		q.currentID = ""
		q.playingSince = time.Time{}
	}
	q.reorderLocked()
	return nil
}

// reorderLocked recomputes the total order and position assignment, returning
// the sorted items. Must be called with the lock held.
func (q *Queue) reorderLocked() []*song.QueueItem {
	sorted := make([]*song.QueueItem, 0, len(q.items))
	for _, it := range q.items {
		sorted = append(sorted, it)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CurrentBid != sorted[j].CurrentBid {
			return sorted[i].CurrentBid > sorted[j].CurrentBid
		}
		return sorted[i].SubmittedAt.Before(sorted[j].SubmittedAt)
	})
	for i, it := range sorted {
		it.Position = i + 1
	}
	return sorted
}
