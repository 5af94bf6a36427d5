// Package song provides the Song and QueueItem domain entities.
package song

import (
	"strings"
	"time"
)

// Song represents a catalog entry resolved through the song catalog.
type Song struct {
	ID       string        // Catalog track ID
	Title    string        // Track title
	Artists  []string      // Artist names
	Album    string        // Album name
	Duration time.Duration // Track duration
	URL      string        // Catalog URL
}

// ArtistLine returns all artist names joined for display.
func (s *Song) ArtistLine() string {
	return strings.Join(s.Artists, ", ")
}

// QueueItem represents a song waiting in a room's bid-ordered queue.
type QueueItem struct {
	ID              string    // Item UUID
	QueueID         string    // Owning queue ID
	SubmitterID     string    // Account that submitted the song
	SubmittedAt     time.Time // Submission time (tie-break key)
	CurrentBid      int64     // Leading bid; 0 means unbid
	CurrentBidderID string    // Leading bidder; empty unless CurrentBid > 0
	Position        int       // 1-based rank, recomputed on every reorder
	Song            Song      // Resolved catalog entry
}

// NewQueueItem creates an unbid queue item for the given song.
func NewQueueItem(id, queueID, submitterID string, s Song, submittedAt time.Time) *QueueItem {
	return &QueueItem{
		ID:          id,
		QueueID:     queueID,
		SubmitterID: submitterID,
		SubmittedAt: submittedAt,
		Song:        s,
	}
}

// HasBid reports whether the item carries a live bid.
func (i *QueueItem) HasBid() bool {
	return i.CurrentBid > 0
}
