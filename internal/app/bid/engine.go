// Package bid provides the bid engine orchestrating a bid against one queue
// item: funds movement through the ledger, queue re-ranking, and the
// best-effort refund of a displaced leader.
package bid

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/SabaVan/kame-sub000/internal/app/ledger"
	"github.com/SabaVan/kame-sub000/internal/app/queue"
	"github.com/SabaVan/kame-sub000/internal/domain/account"
	"github.com/SabaVan/kame-sub000/internal/domain/song"
)

// ErrBidTooLow is returned when a bid does not strictly exceed the item's
// current bid. Equal bids are rejected; this also prevents self-outbid no-ops.
var ErrBidTooLow = errors.New("bid must exceed current bid")

// ReasonBid and ReasonOutbidRefund are the ledger reason tags written by the
// engine.
const (
	ReasonBid          = "bid"
	ReasonOutbidRefund = "outbid refund"
)

// RefundFailure records an outbid refund that could not be applied. The bid
// it compensates for already succeeded; the refund is retried out of band.
type RefundFailure struct {
	AccountID string
	Amount    int64
	RoomID    string
	ItemID    string
	Err       error
	At        time.Time
}

// Engine places bids. Bids on the same queue are serialized by a per-queue
// lock held across the whole protocol, so the strict-increase check can never
// go stale between validation and application. Ledger locks are always taken
// after this lock and released before queue mutation, keeping the
// ledger-before-queue order fixed.
type Engine struct {
	ledger *ledger.Ledger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-queue bid locks

	pendingMu sync.Mutex
	pending   []RefundFailure
}

// New creates a bid engine backed by the given ledger.
func New(l *ledger.Ledger) *Engine {
	return &Engine{
		ledger: l,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// PlaceBid runs the bid protocol for bidder against the identified item.
//
// The spend is the point of no return: once the bidder's credits are moved
// the bid is final, and a failed refund of the previous leader is observed
// and retried but never rolls the bid back. Every failure before the spend
// leaves all state untouched.
func (e *Engine) PlaceBid(q *queue.Queue, bidderID, itemID string, amount int64) (song.QueueItem, error) {
	if amount <= 0 {
		return song.QueueItem{}, errors.Wrapf(ledger.ErrInvalidAmount, "bid %d", amount)
	}

	lock := e.queueLock(q.ID())
	lock.Lock()
	defer lock.Unlock()

	item, err := q.Item(itemID)
	if err != nil {
		return song.QueueItem{}, err
	}
	if amount <= item.CurrentBid {
		return song.QueueItem{}, errors.Wrapf(ErrBidTooLow, "bid %d current %d", amount, item.CurrentBid)
	}

	// Pre-check only; the authoritative check is the spend itself.
	balance, err := e.ledger.Balance(bidderID)
	if err != nil {
		return song.QueueItem{}, err
	}
	if balance < amount {
		return song.QueueItem{}, errors.Wrapf(ledger.ErrInsufficientFunds,
			"account %s balance %d bid %d", bidderID, balance, amount)
	}

	// Captured before mutation; needed for the refund however the spend
	// resolves.
	previousBidderID := item.CurrentBidderID
	previousAmount := item.CurrentBid

	if _, err := e.ledger.Spend(bidderID, amount, ReasonBid, q.RoomID()); err != nil {
		return song.QueueItem{}, err
	}

	updated, err := q.ApplyBid(itemID, bidderID, amount)
	if err != nil {
		// The item vanished between the snapshot and the application
		// (concurrent removal). Reverse the spend so no credits leak.
		if _, addErr := e.ledger.Add(bidderID, amount, "bid reversal", q.RoomID(), account.KindRefund); addErr != nil {
			zlog.Error().Err(addErr).Msgf("bid: failed to reverse spend account=%s amount=%d", bidderID, amount)
			e.recordRefundFailure(bidderID, amount, q.RoomID(), itemID, addErr)
		}
		return song.QueueItem{}, err
	}

	if previousAmount > 0 {
		if _, err := e.ledger.Add(previousBidderID, previousAmount, ReasonOutbidRefund, q.RoomID(), account.KindRefund); err != nil {
			// Best effort: the new bidder has already paid and won the
			// slot. Observe the failure and leave it to the retry sweep.
			zlog.Warn().Err(err).Msgf("bid: outbid refund failed account=%s amount=%d item=%s",
				previousBidderID, previousAmount, itemID)
			e.recordRefundFailure(previousBidderID, previousAmount, q.RoomID(), itemID, err)
		}
	}

	zlog.Info().Msgf("bid: placed room=%s item=%s bidder=%s amount=%d position=%d",
		q.RoomID(), itemID, bidderID, amount, updated.Position)
	return updated, nil
}

// PendingRefunds returns a snapshot of refunds awaiting retry.
func (e *Engine) PendingRefunds() []RefundFailure {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	result := make([]RefundFailure, len(e.pending))
	copy(result, e.pending)
	return result
}

// RetryPendingRefunds re-attempts every recorded refund failure, keeping the
// ones that fail again. Returns the number of refunds applied.
func (e *Engine) RetryPendingRefunds() int {
	e.pendingMu.Lock()
	pending := e.pending
	e.pending = nil
	e.pendingMu.Unlock()

	applied := 0
	for _, rf := range pending {
		if _, err := e.ledger.Add(rf.AccountID, rf.Amount, ReasonOutbidRefund, rf.RoomID, account.KindRefund); err != nil {
			rf.Err = err
			e.pendingMu.Lock()
			e.pending = append(e.pending, rf)
			e.pendingMu.Unlock()
			continue
		}
		applied++
		zlog.Info().Msgf("bid: retried refund account=%s amount=%d item=%s", rf.AccountID, rf.Amount, rf.ItemID)
	}
	return applied
}

func (e *Engine) recordRefundFailure(accountID string, amount int64, roomID, itemID string, err error) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	e.pending = append(e.pending, RefundFailure{
		AccountID: accountID,
		Amount:    amount,
		RoomID:    roomID,
		ItemID:    itemID,
		Err:       err,
		At:        e.now(),
	})
}

func (e *Engine) queueLock(queueID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[queueID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[queueID] = lock
	}
	return lock
}
