package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const ledgerColumns = `id, user_id, balance, total_purchased, total_used, total_refunded,
	last_purchase_at, last_usage_at, created_at, updated_at`

const transactionColumns = `id, ledger_id, kind, amount, balance_before, balance_after, reason,
	mission_id, conversation_id, reference, metadata, created_at`

type PostgresStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (r *PostgresStore) GetOrCreate(ctx context.Context, userID int) (*Ledger, error) {
	l := &Ledger{}
	err := r.db.GetContext(ctx, l, `SELECT `+ledgerColumns+` FROM token_ledgers WHERE user_id = $1`, userID)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// A concurrent creator may win the insert; the no-op update returns its row.
	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO token_ledgers (user_id)
		 VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING `+ledgerColumns,
		userID,
	).StructScan(l)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Append locks the ledger row, computes the new state and writes both the
// ledger and the transaction in one database transaction.
func (r *PostgresStore) Append(ctx context.Context, userID int, e Entry) (*Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	l, err := r.lock(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if e.Reference != "" {
		var seen bool
		err = tx.GetContext(ctx, &seen,
			`SELECT EXISTS(SELECT 1 FROM token_transactions WHERE ledger_id = $1 AND reference = $2)`,
			l.ID, e.Reference)
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, ErrDuplicateReference
		}
	}

	next, t, err := apply(*l, e, r.now().UTC())
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE token_ledgers
		 SET balance = $1, total_purchased = $2, total_used = $3, total_refunded = $4,
		     last_purchase_at = $5, last_usage_at = $6, updated_at = $7
		 WHERE id = $8`,
		next.Balance, next.TotalPurchased, next.TotalUsed, next.TotalRefunded,
		next.LastPurchaseAt, next.LastUsageAt, next.UpdatedAt, l.ID,
	)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO token_transactions
		 (ledger_id, kind, amount, balance_before, balance_after, reason, mission_id, conversation_id, reference, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		t.LedgerID, t.Kind, t.Amount, t.BalanceBefore, t.BalanceAfter, t.Reason,
		t.MissionID, t.ConversationID, t.Reference, t.Metadata, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresStore) lock(ctx context.Context, tx *sqlx.Tx, userID int) (*Ledger, error) {
	const selectForUpdate = `SELECT ` + ledgerColumns + ` FROM token_ledgers WHERE user_id = $1 FOR UPDATE`

	l := &Ledger{}
	err := tx.QueryRowxContext(ctx, selectForUpdate, userID).StructScan(l)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO token_ledgers (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.QueryRowxContext(ctx, selectForUpdate, userID).StructScan(l); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *PostgresStore) Transactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error) {
	limit, offset = page(limit, offset)

	var ledgerID int
	err := r.db.GetContext(ctx, &ledgerID, `SELECT id FROM token_ledgers WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []Transaction{}, nil
		}
		return nil, err
	}

	txs := []Transaction{}
	err = r.db.SelectContext(ctx, &txs, `
		SELECT `+transactionColumns+`
		FROM token_transactions
		WHERE ledger_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, ledgerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *PostgresStore) AllTransactions(ctx context.Context, userID int) ([]Transaction, error) {
	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT t.id, t.ledger_id, t.kind, t.amount, t.balance_before, t.balance_after, t.reason,
		       t.mission_id, t.conversation_id, t.reference, t.metadata, t.created_at
		FROM token_transactions t
		JOIN token_ledgers l ON l.id = t.ledger_id
		WHERE l.user_id = $1
		ORDER BY t.id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return txs, nil
}
