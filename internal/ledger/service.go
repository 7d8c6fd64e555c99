package ledger

import (
	"context"
	"fmt"

	"mijob/internal/metrics"
)

// Service is the only writer of token ledgers.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Balance(ctx context.Context, userID int) (*Ledger, error) {
	l, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return l, nil
}

// Purchase credits tokens bought through the payment collaborator. reference
// is the payment id; replaying it returns ErrDuplicateReference.
func (s *Service) Purchase(ctx context.Context, userID int, amount int64, pkg, reference string) (*Transaction, error) {
	meta := Metadata{"package": pkg}
	if p, ok := FindPackage(pkg); ok {
		meta["price_cents"] = p.PriceCents
	}
	return s.append(ctx, userID, Entry{
		Kind:      KindPurchase,
		Amount:    amount,
		Reason:    "token purchase",
		Reference: reference,
		Metadata:  meta,
	})
}

func (s *Service) Refund(ctx context.Context, userID int, amount int64, reason string) (*Transaction, error) {
	if reason == "" {
		reason = "refund"
	}
	return s.append(ctx, userID, Entry{Kind: KindRefund, Amount: amount, Reason: reason})
}

// Debit records tokens spent on a guarded action.
func (s *Service) Debit(ctx context.Context, userID int, amount int64, reason string, link Link, meta Metadata) (*Transaction, error) {
	return s.append(ctx, userID, Entry{Kind: KindUsed, Amount: amount, Reason: reason, Link: link, Metadata: meta})
}

func (s *Service) Expire(ctx context.Context, userID int, amount int64, reason string) (*Transaction, error) {
	if reason == "" {
		reason = "tokens expired"
	}
	return s.append(ctx, userID, Entry{Kind: KindExpired, Amount: amount, Reason: reason})
}

func (s *Service) History(ctx context.Context, userID int, limit, offset int) ([]Transaction, error) {
	txs, err := s.store.Transactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return txs, nil
}

// Audit compares the stored ledger with a replay of its transaction log.
type Audit struct {
	UserID     int     `json:"user_id"`
	Stored     *Ledger `json:"stored"`
	Replayed   Totals  `json:"replayed"`
	Consistent bool    `json:"consistent"`
	Problem    string  `json:"problem,omitempty"`
}

func (s *Service) Verify(ctx context.Context, userID int) (*Audit, error) {
	l, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	txs, err := s.store.AllTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	a := &Audit{UserID: userID, Stored: l}
	totals, err := Fold(txs)
	a.Replayed = totals
	switch {
	case err != nil:
		a.Problem = err.Error()
	case !totals.Matches(l):
		a.Problem = fmt.Sprintf("replayed balance %d, stored %d", totals.Balance, l.Balance)
	default:
		a.Consistent = true
	}
	return a, nil
}

func (s *Service) append(ctx context.Context, userID int, e Entry) (*Transaction, error) {
	if e.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	t, err := s.store.Append(ctx, userID, e)
	if err != nil {
		return nil, fmt.Errorf("append %s: %w", e.Kind, err)
	}
	metrics.RecordLedgerTransaction(string(t.Kind), t.Amount)
	metrics.ObserveTokenBalance(t.BalanceAfter)
	return t, nil
}
