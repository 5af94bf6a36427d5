// Package jukebox provides the manager tying the ledger, queues, bid engine,
// presence and schedule coordinator into the surface the request and
// transport layers call.
package jukebox

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/SabaVan/kame-sub000/internal/app/bid"
	"github.com/SabaVan/kame-sub000/internal/app/grant"
	"github.com/SabaVan/kame-sub000/internal/app/ledger"
	"github.com/SabaVan/kame-sub000/internal/app/notification"
	"github.com/SabaVan/kame-sub000/internal/app/presence"
	"github.com/SabaVan/kame-sub000/internal/app/queue"
	"github.com/SabaVan/kame-sub000/internal/app/rooms"
	"github.com/SabaVan/kame-sub000/internal/app/schedule"
	"github.com/SabaVan/kame-sub000/internal/domain/account"
	"github.com/SabaVan/kame-sub000/internal/domain/room"
	"github.com/SabaVan/kame-sub000/internal/domain/song"
	"github.com/SabaVan/kame-sub000/internal/infra/config"
)

// ErrRoomClosed is returned when a submission targets a room that is not
// open.
var ErrRoomClosed = errors.New("room is not open")

// Catalog resolves song IDs against the external song catalog.
type Catalog interface {
	LookupSong(ctx context.Context, songID string) (song.Song, error)
}

// Manager owns all core components for one server instance.
type Manager struct {
	config      *config.Config
	store       *rooms.Store
	ledger      *ledger.Ledger
	engine      *bid.Engine
	presence    *presence.Registry
	notifier    *notification.Manager
	coordinator *schedule.Coordinator
	grants      *grant.Chain
	catalog     Catalog
	now         func() time.Time
}

// NewManager creates a manager with rooms and grant policies built from
// configuration.
func NewManager(cfg *config.Config, catalog Catalog) (*Manager, error) {
	l := ledger.New()
	engine := bid.New(l)
	store := rooms.NewStore()
	notifier := notification.NewManager()

	grants, err := grant.NewChainFromConfig(cfg, l)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create grant chain")
	}

	for _, rc := range cfg.Rooms {
		sched, err := rc.ParseSchedule()
		if err != nil {
			return nil, err
		}
		if _, err := store.Create(rc.ID, rc.Name, sched); err != nil {
			return nil, errors.Wrapf(err, "failed to create room %s", rc.ID)
		}
		zlog.Info().Msgf("jukebox: room %s (%s) window %s-%s", rc.ID, rc.Name, rc.OpenAt, rc.CloseAt)
	}

	reg := presence.NewRegistry(func(roomID string) {
		notifier.Publish(notification.Event{
			Kind:   notification.EventPresenceChanged,
			RoomID: roomID,
		})
	})

	coordinator := schedule.New(store, notifier, engine, schedule.Config{
		SyncInterval:    time.Duration(cfg.Schedule.SyncIntervalSec) * time.Second,
		AdvanceInterval: time.Duration(cfg.Schedule.AdvanceIntervalSec) * time.Second,
	})

	return &Manager{
		config:      cfg,
		store:       store,
		ledger:      l,
		engine:      engine,
		presence:    reg,
		notifier:    notifier,
		coordinator: coordinator,
		grants:      grants,
		catalog:     catalog,
		now:         time.Now,
	}, nil
}

// Start launches the schedule coordinator and aligns room state with the
// wall clock immediately instead of waiting for the first sweep.
func (m *Manager) Start() {
	m.coordinator.CheckSchedule(m.now())
	m.coordinator.Start()
}

// Stop shuts down the coordinator and drops all notification subscriptions.
func (m *Manager) Stop() {
	m.coordinator.Stop()
	m.notifier.Close()
}

// Notifications returns the event broadcaster for the transport layer.
func (m *Manager) Notifications() *notification.Manager {
	return m.notifier
}

// RegisterAccount creates an account and applies automatic grant policies
// (e.g. the welcome balance).
func (m *Manager) RegisterAccount(displayName string) (account.Account, error) {
	id := uuid.New().String()
	_, err := m.ledger.CreateAccount(id, displayName)
	if err != nil {
		return account.Account{}, err
	}
	m.grants.ApplyAutomatic(id, m.now())

	// Re-read so the returned snapshot includes automatic grants.
	return m.ledger.Account(id)
}

// AddCredits credits an account.
func (m *Manager) AddCredits(accountID string, amount int64, reason string) (account.Transaction, error) {
	return m.ledger.Add(accountID, amount, reason, "", account.KindAdd)
}

// SpendCredits debits an account outside the bid flow.
func (m *Manager) SpendCredits(accountID string, amount int64, reason string) (account.Transaction, error) {
	return m.ledger.Spend(accountID, amount, reason, "")
}

// Balance returns the account's balance.
func (m *Manager) Balance(accountID string) (int64, error) {
	return m.ledger.Balance(accountID)
}

// History returns the account's transactions, newest first.
func (m *Manager) History(accountID string) ([]account.Transaction, error) {
	return m.ledger.HistoryFor(accountID)
}

// ClaimGrant runs the named claimable grant policy for the account.
func (m *Manager) ClaimGrant(policyName, accountID string) (account.Transaction, error) {
	return m.grants.Claim(policyName, accountID, m.now())
}

// SubmitSong resolves the song through the catalog and appends it, unbid, to
// the room's queue. The room must be open. The catalog call happens before
// any lock is taken.
func (m *Manager) SubmitSong(ctx context.Context, roomID, submitterID, songID string) (song.QueueItem, error) {
	r, err := m.store.Get(roomID)
	if err != nil {
		return song.QueueItem{}, err
	}
	if r.State != room.StateOpen {
		return song.QueueItem{}, errors.Wrapf(ErrRoomClosed, "room %s is %s", roomID, r.State)
	}
	if _, err := m.ledger.Account(submitterID); err != nil {
		return song.QueueItem{}, err
	}

	s, err := m.catalog.LookupSong(ctx, songID)
	if err != nil {
		return song.QueueItem{}, errors.Wrapf(err, "lookup song %s", songID)
	}

	q, err := m.store.Queue(roomID)
	if err != nil {
		return song.QueueItem{}, err
	}

	item := song.NewQueueItem(uuid.New().String(), q.ID(), submitterID, s, m.now())
	q.Append(item)
	zlog.Info().Msgf("jukebox: submitted room=%s item=%s title=%q by=%s", roomID, item.ID, s.Title, submitterID)
	return *item, nil
}

// PlaceBid bids on a queue item in the room.
func (m *Manager) PlaceBid(roomID, bidderID, itemID string, amount int64) (song.QueueItem, error) {
	q, err := m.store.Queue(roomID)
	if err != nil {
		return song.QueueItem{}, err
	}
	return m.engine.PlaceBid(q, bidderID, itemID, amount)
}

// CurrentItem returns the room's top-ranked item without advancing.
func (m *Manager) CurrentItem(roomID string) (song.QueueItem, bool, error) {
	q, err := m.store.Queue(roomID)
	if err != nil {
		return song.QueueItem{}, false, err
	}
	item, ok := q.CurrentItem()
	return item, ok, nil
}

// SelectNext advances the room's queue and returns the item now playing.
func (m *Manager) SelectNext(roomID string) (song.QueueItem, bool, error) {
	q, err := m.store.Queue(roomID)
	if err != nil {
		return song.QueueItem{}, false, err
	}
	item, ok := q.SelectNext()
	return item, ok, nil
}

// Reorder re-ranks the room's queue.
func (m *Manager) Reorder(roomID string) error {
	q, err := m.store.Queue(roomID)
	if err != nil {
		return err
	}
	q.Reorder()
	return nil
}

// QueueItems returns the room's queue in ranked order.
func (m *Manager) QueueItems(roomID string) ([]song.QueueItem, error) {
	q, err := m.store.Queue(roomID)
	if err != nil {
		return nil, err
	}
	return q.Items(), nil
}

// JoinRoom adds a connection to the room's presence set.
func (m *Manager) JoinRoom(roomID, connID string) error {
	if _, err := m.store.Get(roomID); err != nil {
		return err
	}
	m.presence.Join(roomID, connID)
	return nil
}

// LeaveRoom removes a connection from the room's presence set.
func (m *Manager) LeaveRoom(roomID, connID string) {
	m.presence.Leave(roomID, connID)
}

// Disconnect removes the connection from every room and returns the affected
// room IDs.
func (m *Manager) Disconnect(connID string) []string {
	return m.presence.LeaveAll(connID)
}

// PresenceCount returns the number of connections in the room.
func (m *Manager) PresenceCount(roomID string) int {
	return m.presence.Count(roomID)
}

// Rooms returns snapshots of all rooms.
func (m *Manager) Rooms() []room.Room {
	return m.store.All()
}

// Room returns a snapshot of one room.
func (m *Manager) Room(roomID string) (room.Room, error) {
	return m.store.Get(roomID)
}

// SetRoomState is the administrative state override. It shares the
// transition guard with the schedule coordinator.
func (m *Manager) SetRoomState(roomID string, target room.State) (room.Room, error) {
	return m.store.SetState(roomID, target)
}

// CheckSchedule runs one state-sync sweep at the given instant.
func (m *Manager) CheckSchedule(now time.Time) {
	m.coordinator.CheckSchedule(now)
}

// Queue exposes the room's queue to in-process collaborators.
func (m *Manager) Queue(roomID string) (*queue.Queue, error) {
	return m.store.Queue(roomID)
}

// PendingRefunds returns outbid refunds awaiting retry.
func (m *Manager) PendingRefunds() []bid.RefundFailure {
	return m.engine.PendingRefunds()
}
