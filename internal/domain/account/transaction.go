package account

import "time"

// Kind represents the transaction kind.
type Kind int

const (
	KindAdd    Kind = iota // Credits granted or purchased
	KindSpend              // Credits spent (bids)
	KindRefund             // Compensating credit return
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindSpend:
		return "spend"
	case KindRefund:
		return "refund"
	default:
		return "unknown"
	}
}

// Transaction is an immutable, append-only ledger record.
// Amount is signed: negative for spends, positive for adds and refunds.
type Transaction struct {
	ID        string    // Transaction UUID
	AccountID string    // Owning account
	Amount    int64     // Signed amount
	Reason    string    // Reason tag ("bid", "outbid refund", grant name, ...)
	Kind      Kind      // Add, Spend or Refund
	RoomID    string    // Optional room reference
	CreatedAt time.Time // Creation time
}
