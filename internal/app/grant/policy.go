// Package grant provides configurable credit-grant policies: one-time
// welcome grants and cooldown-gated bonus claims, built from config blocks.
package grant

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/SabaVan/kame-sub000/internal/domain/account"
)

// Errors
var (
	ErrNotEligible    = errors.New("grant not yet eligible")
	ErrUnknownPolicy  = errors.New("unknown grant policy")
	ErrAlreadyGranted = errors.New("grant already applied")
)

// Policy decides whether an account may receive a grant, judging only from
// the account's transaction history and the current time. The policy name
// doubles as the ledger reason tag, so the history is the single source of
// truth for eligibility.
type Policy interface {
	// Name is the policy identity and the reason tag of its transactions.
	Name() string
	// Automatic reports whether the grant is applied on account creation
	// rather than claimed.
	Automatic() bool
	// Evaluate returns the amount to grant, or an eligibility error.
	// history is newest first, as returned by the ledger.
	Evaluate(history []account.Transaction, now time.Time) (int64, error)
}

// newestGrant finds the most recent credit transaction carrying the given
// reason tag. history is newest first.
func newestGrant(history []account.Transaction, reason string) (account.Transaction, bool) {
	for _, tx := range history {
		if tx.Kind == account.KindAdd && tx.Reason == reason {
			return tx, true
		}
	}
	return account.Transaction{}, false
}
