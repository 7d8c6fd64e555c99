package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps ledgers in process. Each account has its own mutex, so
// appends to different accounts do not contend.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[int]*memAccount
	nextID   int
	nextTxID int64
	now      func() time.Time
}

type memAccount struct {
	mu     sync.Mutex
	ledger Ledger
	txs    []Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[int]*memAccount),
		now:      time.Now,
	}
}

func (s *MemoryStore) account(userID int) *memAccount {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.accounts[userID]; ok {
		return a
	}
	s.nextID++
	now := s.now().UTC()
	a := &memAccount{ledger: Ledger{ID: s.nextID, UserID: userID, CreatedAt: now, UpdatedAt: now}}
	s.accounts[userID] = a
	return a
}

func (s *MemoryStore) txID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTxID++
	return s.nextTxID
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, userID int) (*Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := s.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	l := a.ledger
	return &l, nil
}

func (s *MemoryStore) Append(ctx context.Context, userID int, e Entry) (*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := s.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if e.Reference != "" {
		for _, t := range a.txs {
			if t.Reference != nil && *t.Reference == e.Reference {
				return nil, ErrDuplicateReference
			}
		}
	}

	next, t, err := apply(a.ledger, e, s.now().UTC())
	if err != nil {
		return nil, err
	}
	t.ID = s.txID()
	a.ledger = next
	a.txs = append(a.txs, t)
	return &t, nil
}

func (s *MemoryStore) Transactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, offset = page(limit, offset)
	a := s.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	out := []Transaction{}
	for i := len(a.txs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.txs[i])
	}
	return out, nil
}

func (s *MemoryStore) AllTransactions(ctx context.Context, userID int) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := s.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Transaction, len(a.txs))
	copy(out, a.txs)
	return out, nil
}
