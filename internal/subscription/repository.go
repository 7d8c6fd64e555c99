package subscription

import (
	"context"
	"errors"
	"time"

	"mijob/internal/db"
	"mijob/internal/quota"

	"github.com/jmoiron/sqlx"
)

var ErrNotCompany = errors.New("account not found or not a company")

type Repository interface {
	Activate(ctx context.Context, userID int, spec quota.PlanSpec, from, until time.Time) (*Subscription, error)
	History(ctx context.Context, userID int) ([]Subscription, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Activate sets the company's plan window and records the activation in one
// transaction.
func (r *repository) Activate(ctx context.Context, userID int, spec quota.PlanSpec, from, until time.Time) (*Subscription, error) {
	sub := &Subscription{}
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE users
			SET subscription_plan = $2, subscription_start = $3, subscription_end = $4
			WHERE id = $1 AND role = 'company'
		`, userID, spec.Plan, from, until)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotCompany
		}

		return tx.QueryRowxContext(ctx, `
			INSERT INTO subscriptions (user_id, plan, price_cents, valid_from, valid_until)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, user_id, plan, price_cents, valid_from, valid_until, created_at
		`, userID, spec.Plan, spec.PriceCents, from, until).StructScan(sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *repository) History(ctx context.Context, userID int) ([]Subscription, error) {
	subs := []Subscription{}
	err := r.db.SelectContext(ctx, &subs, `
		SELECT id, user_id, plan, price_cents, valid_from, valid_until, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	return subs, err
}
