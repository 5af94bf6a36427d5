package jukebox

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SabaVan/kame-sub000/internal/domain/room"
	"github.com/SabaVan/kame-sub000/internal/domain/song"
	"github.com/SabaVan/kame-sub000/internal/infra/config"
)

// fakeCatalog resolves song IDs from a fixed table.
type fakeCatalog struct {
	songs map[string]song.Song
}

func (c *fakeCatalog) LookupSong(_ context.Context, songID string) (song.Song, error) {
	s, ok := c.songs[songID]
	if !ok {
		return song.Song{}, errors.Newf("unknown song %s", songID)
	}
	return s, nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &config.Config{
		Rooms: []config.RoomConfig{
			{ID: "main", Name: "Main Floor", OpenAt: "18:00", CloseAt: "23:00"},
			{ID: "late", Name: "Late Night", OpenAt: "22:00", CloseAt: "02:00"},
		},
		Grants: []config.GrantConfig{
			{Type: "welcome", Settings: map[string]any{"amount": 100}},
			{Type: "daily_bonus", Settings: map[string]any{"amount": 25, "cooldown_hours": 24}},
		},
	}
	catalog := &fakeCatalog{songs: map[string]song.Song{
		"s1": {ID: "s1", Title: "First Song", Duration: 3 * time.Minute},
		"s2": {ID: "s2", Title: "Second Song", Duration: 4 * time.Minute},
	}}

	m, err := NewManager(cfg, catalog)
	require.NoError(t, err)
	return m
}

func TestManager_RegisterAccount_AppliesWelcomeGrant(t *testing.T) {
	m := newTestManager(t)

	acct, err := m.RegisterAccount("Alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.Balance)

	history, err := m.History(acct.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "welcome", history[0].Reason)
}

func TestManager_SubmitSong(t *testing.T) {
	m := newTestManager(t)
	acct, err := m.RegisterAccount("Alice")
	require.NoError(t, err)

	// Closed room rejects submissions
	_, err = m.SubmitSong(context.Background(), "main", acct.ID, "s1")
	assert.ErrorIs(t, err, ErrRoomClosed)

	_, err = m.SetRoomState("main", room.StateOpen)
	require.NoError(t, err)

	item, err := m.SubmitSong(context.Background(), "main", acct.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, "First Song", item.Song.Title)
	assert.Equal(t, int64(0), item.CurrentBid)
	assert.Equal(t, acct.ID, item.SubmitterID)

	// Unknown song propagates the catalog failure
	_, err = m.SubmitSong(context.Background(), "main", acct.ID, "mystery")
	assert.Error(t, err)

	items, err := m.QueueItems("main")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestManager_BidFlow(t *testing.T) {
	m := newTestManager(t)
	alice, err := m.RegisterAccount("Alice")
	require.NoError(t, err)
	bob, err := m.RegisterAccount("Bob")
	require.NoError(t, err)

	_, err = m.SetRoomState("main", room.StateOpen)
	require.NoError(t, err)
	item, err := m.SubmitSong(context.Background(), "main", alice.ID, "s1")
	require.NoError(t, err)

	_, err = m.PlaceBid("main", alice.ID, item.ID, 30)
	require.NoError(t, err)

	updated, err := m.PlaceBid("main", bob.ID, item.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), updated.CurrentBid)
	assert.Equal(t, bob.ID, updated.CurrentBidderID)

	// Bob paid, Alice was made whole again
	bobBalance, err := m.Balance(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), bobBalance)
	aliceBalance, err := m.Balance(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), aliceBalance)

	assert.Empty(t, m.PendingRefunds())
}

func TestManager_SelectionSurface(t *testing.T) {
	m := newTestManager(t)
	alice, err := m.RegisterAccount("Alice")
	require.NoError(t, err)

	_, err = m.SetRoomState("main", room.StateOpen)
	require.NoError(t, err)

	first, err := m.SubmitSong(context.Background(), "main", alice.ID, "s1")
	require.NoError(t, err)
	second, err := m.SubmitSong(context.Background(), "main", alice.ID, "s2")
	require.NoError(t, err)

	_, err = m.PlaceBid("main", alice.ID, second.ID, 10)
	require.NoError(t, err)

	top, ok, err := m.CurrentItem("main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, top.ID)

	playing, ok, err := m.SelectNext("main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, playing.ID)

	next, ok, err := m.SelectNext("main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, next.ID)
}

func TestManager_Presence(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.JoinRoom("main", "conn-1"))
	require.NoError(t, m.JoinRoom("main", "conn-2"))
	require.NoError(t, m.JoinRoom("late", "conn-1"))
	assert.Equal(t, 2, m.PresenceCount("main"))

	// Unknown rooms are rejected at the surface
	assert.Error(t, m.JoinRoom("ghost", "conn-1"))

	m.LeaveRoom("main", "conn-2")
	assert.Equal(t, 1, m.PresenceCount("main"))

	affected := m.Disconnect("conn-1")
	assert.ElementsMatch(t, []string{"main", "late"}, affected)
	assert.Equal(t, 0, m.PresenceCount("main"))
}

func TestManager_CheckScheduleAlignsRooms(t *testing.T) {
	m := newTestManager(t)

	// 20:00 UTC: main (18-23) open, late (22-02) still closed
	m.CheckSchedule(time.Date(2025, 6, 15, 20, 0, 0, 0, time.UTC))

	main, err := m.Room("main")
	require.NoError(t, err)
	assert.Equal(t, room.StateOpen, main.State)

	late, err := m.Room("late")
	require.NoError(t, err)
	assert.Equal(t, room.StateClosed, late.State)

	// 01:00 UTC: overnight room open, evening room closed
	m.CheckSchedule(time.Date(2025, 6, 16, 1, 0, 0, 0, time.UTC))

	main, err = m.Room("main")
	require.NoError(t, err)
	assert.Equal(t, room.StateClosed, main.State)

	late, err = m.Room("late")
	require.NoError(t, err)
	assert.Equal(t, room.StateOpen, late.State)
}

func TestManager_ClaimGrantCooldown(t *testing.T) {
	m := newTestManager(t)
	acct, err := m.RegisterAccount("Alice")
	require.NoError(t, err)

	_, err = m.ClaimGrant("daily_bonus", acct.ID)
	require.NoError(t, err)

	// Immediately claiming again is inside the cooldown
	_, err = m.ClaimGrant("daily_bonus", acct.ID)
	assert.Error(t, err)

	balance, err := m.Balance(acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(125), balance)
}
