// Package schedule provides the coordinator driving room open/close state
// from wall-clock schedules and advancing each room's queue when the playing
// item runs out.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/SabaVan/kame-sub000/internal/app/bid"
	"github.com/SabaVan/kame-sub000/internal/app/notification"
	"github.com/SabaVan/kame-sub000/internal/app/rooms"
	"github.com/SabaVan/kame-sub000/internal/domain/room"
)

// Config holds coordinator loop intervals.
type Config struct {
	SyncInterval    time.Duration // State-sync sweep interval
	AdvanceInterval time.Duration // Advancement sweep interval
}

// Coordinator runs two independent periodic loops: the state-sync loop flips
// rooms between Open and Closed from their schedules, and the advancement
// loop retires finished items and selects the next by rank. A failure in one
// room never aborts the sweep over the rest.
type Coordinator struct {
	store    *rooms.Store
	notifier *notification.Manager
	engine   *bid.Engine
	config   Config
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a coordinator. engine may be nil; when set, pending outbid
// refunds are retried during each state-sync sweep.
func New(store *rooms.Store, notifier *notification.Manager, engine *bid.Engine, config Config) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	if config.SyncInterval <= 0 {
		config.SyncInterval = 5 * time.Minute
	}
	if config.AdvanceInterval <= 0 {
		config.AdvanceInterval = time.Minute
	}
	return &Coordinator{
		store:    store,
		notifier: notifier,
		engine:   engine,
		config:   config,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetClock overrides the coordinator clock. Intended for tests.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Start launches both loops.
func (c *Coordinator) Start() {
	c.wg.Add(2)
	go c.runSyncLoop()
	go c.runAdvanceLoop()
	zlog.Info().Msgf("schedule: coordinator started sync=%v advance=%v",
		c.config.SyncInterval, c.config.AdvanceInterval)
}

// Stop cancels both loops and waits for any in-flight sweep to finish, so no
// room is left mid-transition.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
	zlog.Info().Msg("schedule: coordinator stopped")
}

func (c *Coordinator) runSyncLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.CheckSchedule(c.now())
			if c.engine != nil {
				if applied := c.engine.RetryPendingRefunds(); applied > 0 {
					zlog.Info().Msgf("schedule: retried %d pending refunds", applied)
				}
			}
		}
	}
}

func (c *Coordinator) runAdvanceLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.AdvanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.AdvanceRooms(c.now())
		}
	}
}

// CheckSchedule runs one state-sync sweep: every room whose state
// participates in schedule automation is moved to match its open window at
// the given instant. Per-room failures are logged and isolated.
func (c *Coordinator) CheckSchedule(now time.Time) {
	for _, r := range c.store.All() {
		if err := c.syncRoom(r, now); err != nil {
			zlog.Error().Err(err).Msgf("schedule: state sync failed room=%s", r.ID)
		}
	}
}

func (c *Coordinator) syncRoom(r room.Room, now time.Time) error {
	if !r.State.Automated() {
		return nil
	}

	shouldBeOpen := r.Schedule.ShouldBeOpen(now)
	var target room.State
	switch {
	case shouldBeOpen && r.State == room.StateClosed:
		target = room.StateOpen
	case !shouldBeOpen && r.State == room.StateOpen:
		target = room.StateClosed
	default:
		return nil
	}

	if _, err := c.store.SetState(r.ID, target); err != nil {
		if errors.Is(err, room.ErrAlreadyInState) {
			// Raced with an administrative override; nothing to apply.
			zlog.Debug().Msgf("schedule: room %s already %s", r.ID, target)
			return nil
		}
		return err
	}
	zlog.Info().Msgf("schedule: room %s -> %s (window %s-%s)",
		r.ID, target, r.Schedule.OpenAt, r.Schedule.CloseAt)
	return nil
}

// AdvanceRooms runs one advancement sweep: rooms whose playing item has
// reached its duration get a song_ended event, the item is retired, and the
// next item by rank (if any) starts with a song_started event. Rooms with
// queued items but nothing playing are started, so playback resumes once
// items arrive after a drain.
func (c *Coordinator) AdvanceRooms(now time.Time) {
	for _, r := range c.store.All() {
		if err := c.advanceRoom(r, now); err != nil {
			zlog.Error().Err(err).Msgf("schedule: advancement failed room=%s", r.ID)
		}
	}
}

func (c *Coordinator) advanceRoom(r room.Room, now time.Time) error {
	q, err := c.store.Queue(r.ID)
	if err != nil {
		return err
	}

	playing, since, ok := q.NowPlaying()
	if ok {
		if now.Sub(since) < playing.Song.Duration {
			return nil
		}

		c.notifier.Publish(notification.Event{
			Kind:   notification.EventSongEnded,
			RoomID: r.ID,
			ItemID: playing.ID,
		})

		// Retire the finished item before selecting, so it cannot be
		// picked again once the exclusion moves on.
		if err := q.Remove(playing.ID); err != nil {
			return errors.Wrapf(err, "retire item %s", playing.ID)
		}
	} else if q.Len() == 0 {
		return nil
	}

	next, ok := q.SelectNext()
	if !ok {
		zlog.Debug().Msgf("schedule: room %s queue drained", r.ID)
		return nil
	}

	c.notifier.Publish(notification.Event{
		Kind:   notification.EventSongStarted,
		RoomID: r.ID,
		ItemID: next.ID,
		Title:  next.Song.Title,
	})
	zlog.Info().Msgf("schedule: room %s now playing item=%s title=%q bid=%d",
		r.ID, next.ID, next.Song.Title, next.CurrentBid)
	return nil
}
