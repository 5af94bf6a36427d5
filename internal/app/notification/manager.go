// Package notification provides the room-scoped event broadcaster: the
// publish-to-room primitive the transport layer subscribes to.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Stream receives events for one subscription.
type Stream interface {
	Send(Event) error
}

// subscription binds a stream to a room.
type subscription struct {
	id     string
	roomID string
	stream Stream
}

// Manager manages subscriptions and broadcasts events to a room's
// subscribers. Delivery is fire-and-forget, at least once; slow streams are
// abandoned after a timeout rather than blocking the publisher.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription

	sequenceNoMu sync.Mutex
	sequenceNo   uint64

	sendTimeout time.Duration
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   500 * time.Millisecond,
	}
}

// Subscribe registers a stream for a room and returns the subscription ID.
func (m *Manager) Subscribe(roomID string, stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		roomID: roomID,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Publish stamps the event with the next sequence number and sends it to all
// subscribers of the event's room. Each send runs in its own goroutine with
// a timeout; failures are dropped, the transport layer may dedupe.
func (m *Manager) Publish(event Event) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	event.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	// Copy matching subscriptions so the lock is not held during sends.
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if sub.roomID == event.RoomID {
			subs = append(subs, sub)
		}
	}
	m.mu.RUnlock()

	if len(subs) == 0 {
		return
	}
	zlog.Debug().Msgf("notification: publish kind=%s room=%s seq=%d subscribers=%d",
		event.Kind, event.RoomID, event.SequenceNo, len(subs))

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(event)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Err(err).Msgf("notification: send failed subscription=%s", s.id)
				}
			case <-ctx.Done():
				// Slow stream; abandoned for this event.
			}
		}(sub)
	}
	wg.Wait()
}

// SubscriberCount returns the number of subscriptions for a room.
func (m *Manager) SubscriberCount(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, sub := range m.subscriptions {
		if sub.roomID == roomID {
			count++
		}
	}
	return count
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
