package subscription

import (
	"context"
	"regexp"
	"testing"
	"time"

	"mijob/internal/quota"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var subCols = []string{"id", "user_id", "plan", "price_cents", "valid_from", "valid_until", "created_at"}

func setupSubscriptionMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "postgres")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func TestActivate(t *testing.T) {
	spec := quota.PlanSpec{Plan: quota.PlanStandard, PriceCents: 24900, Missions: 10, Contacts: 30}
	from := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 1, 0)

	t.Run("updates the window and records history", func(t *testing.T) {
		repo, mock, close := setupSubscriptionMock(t)
		defer close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET subscription_plan = $2, subscription_start = $3, subscription_end = $4 WHERE id = $1 AND role = 'company'")).
			WithArgs(5, quota.PlanStandard, from, until).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO subscriptions (user_id, plan, price_cents, valid_from, valid_until)")).
			WithArgs(5, quota.PlanStandard, int64(24900), from, until).
			WillReturnRows(sqlmock.NewRows(subCols).AddRow(1, 5, "standard", 24900, from, until, from))
		mock.ExpectCommit()

		sub, err := repo.Activate(context.Background(), 5, spec, from, until)
		require.NoError(t, err)
		assert.Equal(t, quota.PlanStandard, sub.Plan)
		assert.Equal(t, until, sub.ValidUntil)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-company is rolled back", func(t *testing.T) {
		repo, mock, close := setupSubscriptionMock(t)
		defer close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
			WithArgs(6, quota.PlanStandard, from, until).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.Activate(context.Background(), 6, spec, from, until)
		assert.ErrorIs(t, err, ErrNotCompany)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHistory(t *testing.T) {
	repo, mock, close := setupSubscriptionMock(t)
	defer close()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(subCols).
			AddRow(2, 5, "premium", 49900, now, now.AddDate(0, 1, 0), now).
			AddRow(1, 5, "basic", 9900, now.AddDate(0, -1, 0), now, now.AddDate(0, -1, 0)))

	subs, err := repo.History(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, quota.PlanPremium, subs[0].Plan)
}
