package ledger

import "context"

// Store persists ledgers and their transaction logs. Append must serialise
// concurrent writers to the same ledger.
type Store interface {
	GetOrCreate(ctx context.Context, userID int) (*Ledger, error)
	Append(ctx context.Context, userID int, e Entry) (*Transaction, error)
	// Transactions returns the newest transactions first.
	Transactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error)
	// AllTransactions returns the full log in insertion order.
	AllTransactions(ctx context.Context, userID int) ([]Transaction, error)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// page normalises caller paging: non-positive limits get the default and
// negative offsets start from the newest transaction.
func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
