// Package account provides the Account and Transaction domain entities.
package account

import "time"

// Account represents a participant's credit account.
// Balance is mutated only through ledger operations and never goes negative.
type Account struct {
	ID          string    // Account UUID or external identity
	DisplayName string    // Display name
	Balance     int64     // Current credit balance
	CreatedAt   time.Time // Creation time
}

// New creates an account with a zero balance.
func New(id, displayName string, createdAt time.Time) *Account {
	return &Account{
		ID:          id,
		DisplayName: displayName,
		CreatedAt:   createdAt,
	}
}
