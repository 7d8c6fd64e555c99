package ledger

import (
	"fmt"
	"time"
)

// apply computes the ledger state after e and the transaction that records it.
// l is not modified. Debits that would take the balance below zero are
// rejected, never clamped.
func apply(l Ledger, e Entry, now time.Time) (Ledger, Transaction, error) {
	if !e.Kind.Valid() {
		return l, Transaction{}, ErrInvalidKind
	}
	if e.Amount <= 0 {
		return l, Transaction{}, ErrInvalidAmount
	}

	next := l
	switch e.Kind {
	case KindPurchase:
		next.Balance += e.Amount
		next.TotalPurchased += e.Amount
		next.LastPurchaseAt = &now
	case KindRefund:
		next.Balance += e.Amount
		next.TotalRefunded += e.Amount
	case KindUsed, KindExpired:
		if l.Balance < e.Amount {
			return l, Transaction{}, ErrInsufficientBalance
		}
		next.Balance -= e.Amount
		next.TotalUsed += e.Amount
		if e.Kind == KindUsed {
			next.LastUsageAt = &now
		}
	}
	next.UpdatedAt = now

	tx := Transaction{
		LedgerID:       l.ID,
		Kind:           e.Kind,
		Amount:         e.Amount,
		BalanceBefore:  l.Balance,
		BalanceAfter:   next.Balance,
		Reason:         e.Reason,
		MissionID:      e.Link.MissionID,
		ConversationID: e.Link.ConversationID,
		Metadata:       e.Metadata,
		CreatedAt:      now,
	}
	if e.Reference != "" {
		ref := e.Reference
		tx.Reference = &ref
	}
	return next, tx, nil
}

// Totals is the result of folding a transaction log from an empty ledger.
type Totals struct {
	Balance        int64 `json:"balance"`
	TotalPurchased int64 `json:"total_purchased"`
	TotalUsed      int64 `json:"total_used"`
	TotalRefunded  int64 `json:"total_refunded"`
	Transactions   int   `json:"transactions"`
}

// Fold replays txs in insertion order and checks that each snapshot continues
// from the previous one.
func Fold(txs []Transaction) (Totals, error) {
	var t Totals
	for i, tx := range txs {
		if tx.BalanceBefore != t.Balance {
			return t, fmt.Errorf("%w: transaction %d starts at %d, expected %d", ErrChainBroken, tx.ID, tx.BalanceBefore, t.Balance)
		}
		switch tx.Kind {
		case KindPurchase:
			t.Balance += tx.Amount
			t.TotalPurchased += tx.Amount
		case KindRefund:
			t.Balance += tx.Amount
			t.TotalRefunded += tx.Amount
		case KindUsed, KindExpired:
			t.Balance -= tx.Amount
			t.TotalUsed += tx.Amount
		default:
			return t, fmt.Errorf("%w: transaction %d has kind %q", ErrInvalidKind, tx.ID, tx.Kind)
		}
		if tx.BalanceAfter != t.Balance || t.Balance < 0 {
			return t, fmt.Errorf("%w: transaction %d ends at %d, expected %d", ErrChainBroken, tx.ID, tx.BalanceAfter, t.Balance)
		}
		t.Transactions = i + 1
	}
	return t, nil
}

// Matches reports whether the folded totals equal the stored ledger.
func (t Totals) Matches(l *Ledger) bool {
	return t.Balance == l.Balance &&
		t.TotalPurchased == l.TotalPurchased &&
		t.TotalUsed == l.TotalUsed &&
		t.TotalRefunded == l.TotalRefunded
}
