package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SabaVan/kame-sub000/internal/domain/account"
)

func newTestLedger(t *testing.T, accountID string, balance int64) *Ledger {
	t.Helper()
	l := New()
	_, err := l.CreateAccount(accountID, "Test User")
	require.NoError(t, err)
	if balance > 0 {
		_, err = l.Add(accountID, balance, "initial", "", account.KindAdd)
		require.NoError(t, err)
	}
	return l
}

func TestLedger_Spend(t *testing.T) {
	tests := []struct {
		name        string
		balance     int64
		amount      int64
		wantErr     error
		wantBalance int64
	}{
		{name: "successful spend", balance: 100, amount: 30, wantBalance: 70},
		{name: "spend entire balance", balance: 50, amount: 50, wantBalance: 0},
		{name: "insufficient funds", balance: 20, amount: 30, wantErr: ErrInsufficientFunds, wantBalance: 20},
		{name: "zero amount", balance: 100, amount: 0, wantErr: ErrInvalidAmount, wantBalance: 100},
		{name: "negative amount", balance: 100, amount: -5, wantErr: ErrInvalidAmount, wantBalance: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t, "acct-1", tt.balance)

			tx, err := l.Spend("acct-1", tt.amount, "bid", "room-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, -tt.amount, tx.Amount)
				assert.Equal(t, account.KindSpend, tx.Kind)
				assert.Equal(t, "room-1", tx.RoomID)
			}

			// Balance never goes negative, including after a failed spend
			balance, err := l.Balance("acct-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, balance)
			assert.GreaterOrEqual(t, balance, int64(0))
		})
	}
}

func TestLedger_Spend_UnknownAccount(t *testing.T) {
	l := New()
	_, err := l.Spend("nobody", 10, "bid", "")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestLedger_Add(t *testing.T) {
	l := newTestLedger(t, "acct-1", 0)

	tx, err := l.Add("acct-1", 40, "outbid refund", "room-1", account.KindRefund)
	require.NoError(t, err)
	assert.Equal(t, int64(40), tx.Amount)
	assert.Equal(t, account.KindRefund, tx.Kind)

	// A spend kind is not a credit
	_, err = l.Add("acct-1", 10, "bad", "", account.KindSpend)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	balance, err := l.Balance("acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)
}

func TestLedger_FailedSpendLeavesNoTransaction(t *testing.T) {
	l := newTestLedger(t, "acct-1", 10)

	_, err := l.Spend("acct-1", 100, "bid", "")
	require.ErrorIs(t, err, ErrInsufficientFunds)

	history, err := l.HistoryFor("acct-1")
	require.NoError(t, err)
	require.Len(t, history, 1) // only the initial credit
	assert.Equal(t, "initial", history[0].Reason)
}

func TestLedger_HistoryNewestFirst(t *testing.T) {
	l := newTestLedger(t, "acct-1", 100)

	_, err := l.Spend("acct-1", 30, "bid", "")
	require.NoError(t, err)
	_, err = l.Add("acct-1", 30, "outbid refund", "", account.KindRefund)
	require.NoError(t, err)

	history, err := l.HistoryFor("acct-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "outbid refund", history[0].Reason)
	assert.Equal(t, "bid", history[1].Reason)
	assert.Equal(t, "initial", history[2].Reason)
}

func TestLedger_CreateAccount_Duplicate(t *testing.T) {
	l := newTestLedger(t, "acct-1", 0)
	_, err := l.CreateAccount("acct-1", "Again")
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestLedger_SetClockControlsTimestamps(t *testing.T) {
	l := New()
	ts := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return ts })

	acct, err := l.CreateAccount("acct-1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, ts, acct.CreatedAt)

	tx, err := l.Add("acct-1", 10, "initial", "", account.KindAdd)
	require.NoError(t, err)
	assert.Equal(t, ts, tx.CreatedAt)
}

func TestLedger_ConcurrentSpendsSerialize(t *testing.T) {
	l := newTestLedger(t, "acct-1", 50)

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Spend("acct-1", 10, "bid", "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}

	// Exactly 5 spends of 10 fit into a balance of 50
	assert.Equal(t, 5, succeeded)

	balance, err := l.Balance("acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}
