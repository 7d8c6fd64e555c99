package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindPurchase Kind = "purchase"
	KindUsed     Kind = "used"
	KindRefund   Kind = "refund"
	KindExpired  Kind = "expired"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindUsed, KindRefund, KindExpired:
		return true
	}
	return false
}

// Credit reports whether the kind increases the balance.
func (k Kind) Credit() bool {
	return k == KindPurchase || k == KindRefund
}

// Ledger is the token account of one user. It is only ever changed by
// appending a Transaction.
type Ledger struct {
	ID             int        `db:"id" json:"id"`
	UserID         int        `db:"user_id" json:"user_id"`
	Balance        int64      `db:"balance" json:"balance"`
	TotalPurchased int64      `db:"total_purchased" json:"total_purchased"`
	TotalUsed      int64      `db:"total_used" json:"total_used"`
	TotalRefunded  int64      `db:"total_refunded" json:"total_refunded"`
	LastPurchaseAt *time.Time `db:"last_purchase_at" json:"last_purchase_at,omitempty"`
	LastUsageAt    *time.Time `db:"last_usage_at" json:"last_usage_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable ledger entry. Amount is always positive; the
// direction comes from Kind.
type Transaction struct {
	ID             int64     `db:"id" json:"id"`
	LedgerID       int       `db:"ledger_id" json:"ledger_id"`
	Kind           Kind      `db:"kind" json:"kind"`
	Amount         int64     `db:"amount" json:"amount"`
	BalanceBefore  int64     `db:"balance_before" json:"balance_before"`
	BalanceAfter   int64     `db:"balance_after" json:"balance_after"`
	Reason         string    `db:"reason" json:"reason"`
	MissionID      *int      `db:"mission_id" json:"mission_id,omitempty"`
	ConversationID *int      `db:"conversation_id" json:"conversation_id,omitempty"`
	Reference      *string   `db:"reference" json:"reference,omitempty"`
	Metadata       Metadata  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Entry is a request to append a transaction.
type Entry struct {
	Kind      Kind
	Amount    int64
	Reason    string
	Link      Link
	Reference string
	Metadata  Metadata
}

// Link ties a debit to the record that caused it.
type Link struct {
	MissionID      *int
	ConversationID *int
}

// Metadata is a free-form bag stored as JSONB.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("ledger: cannot scan %T into Metadata", src)
	}
	return json.Unmarshal(data, m)
}

var (
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidKind         = errors.New("unknown transaction kind")
	ErrDuplicateReference  = errors.New("transaction reference already recorded")
	ErrChainBroken         = errors.New("transaction chain does not match ledger")
)
