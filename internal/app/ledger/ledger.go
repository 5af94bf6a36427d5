// Package ledger provides the credit ledger: account balances plus an
// append-only transaction log.
package ledger

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/SabaVan/kame-sub000/internal/domain/account"
)

// Errors
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
)

// entry pairs an account with its history and a lock serializing all
// mutations for that account. Operations on different accounts never
// contend with each other.
type entry struct {
	mu      sync.Mutex
	account *account.Account
	history []account.Transaction
}

// Ledger owns all accounts and their transaction logs.
type Ledger struct {
	mu      sync.RWMutex // guards the accounts map, not entry contents
	entries map[string]*entry
	now     func() time.Time
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// SetClock overrides the ledger clock. Intended for tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// CreateAccount registers a new account with a zero balance.
func (l *Ledger) CreateAccount(accountID, displayName string) (*account.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[accountID]; ok {
		return nil, errors.Wrapf(ErrAccountExists, "account %s", accountID)
	}

	acct := account.New(accountID, displayName, l.now())
	l.entries[accountID] = &entry{account: acct}
	return acct, nil
}

// Spend atomically debits the account and appends a Spend transaction.
// Either both happen or neither: an insufficient balance leaves the account
// and its history untouched.
func (l *Ledger) Spend(accountID string, amount int64, reason, roomID string) (account.Transaction, error) {
	if amount <= 0 {
		return account.Transaction{}, errors.Wrapf(ErrInvalidAmount, "spend %d", amount)
	}

	e, err := l.entry(accountID)
	if err != nil {
		return account.Transaction{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if amount > e.account.Balance {
		return account.Transaction{}, errors.Wrapf(ErrInsufficientFunds,
			"account %s balance %d spend %d", accountID, e.account.Balance, amount)
	}

	tx := account.Transaction{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Amount:    -amount,
		Reason:    reason,
		Kind:      account.KindSpend,
		RoomID:    roomID,
		CreatedAt: l.now(),
	}
	e.account.Balance -= amount
	e.history = append(e.history, tx)

	zlog.Debug().Msgf("ledger: spend account=%s amount=%d reason=%s balance=%d",
		accountID, amount, reason, e.account.Balance)
	return tx, nil
}

// Add atomically credits the account and appends a transaction of the given
// kind (Add or Refund; a Spend kind is rejected as an invalid credit).
func (l *Ledger) Add(accountID string, amount int64, reason, roomID string, kind account.Kind) (account.Transaction, error) {
	if amount <= 0 {
		return account.Transaction{}, errors.Wrapf(ErrInvalidAmount, "add %d", amount)
	}
	if kind != account.KindAdd && kind != account.KindRefund {
		return account.Transaction{}, errors.Wrapf(ErrInvalidAmount, "kind %s is not a credit", kind)
	}

	e, err := l.entry(accountID)
	if err != nil {
		return account.Transaction{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx := account.Transaction{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Amount:    amount,
		Reason:    reason,
		Kind:      kind,
		RoomID:    roomID,
		CreatedAt: l.now(),
	}
	e.account.Balance += amount
	e.history = append(e.history, tx)

	zlog.Debug().Msgf("ledger: %s account=%s amount=%d reason=%s balance=%d",
		kind, accountID, amount, reason, e.account.Balance)
	return tx, nil
}

// Balance returns the account's current balance.
func (l *Ledger) Balance(accountID string) (int64, error) {
	e, err := l.entry(accountID)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Balance, nil
}

// Account returns a snapshot of the account.
func (l *Ledger) Account(accountID string) (account.Account, error) {
	e, err := l.entry(accountID)
	if err != nil {
		return account.Account{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.account, nil
}

// HistoryFor returns the account's transactions, newest first.
func (l *Ledger) HistoryFor(accountID string) ([]account.Transaction, error) {
	e, err := l.entry(accountID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]account.Transaction, len(e.history))
	for i, tx := range e.history {
		result[len(e.history)-1-i] = tx
	}
	return result, nil
}

// AccountIDs returns all registered account IDs.
func (l *Ledger) AccountIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	return ids
}

func (l *Ledger) entry(accountID string) (*entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[accountID]
	if !ok {
		return nil, errors.Wrapf(ErrAccountNotFound, "account %s", accountID)
	}
	return e, nil
}
