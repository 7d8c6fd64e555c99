package mission

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var missionCols = []string{"id", "owner_id", "title", "description", "city", "category", "budget_cents",
	"starts_at", "ends_at", "featured", "status", "created_at", "updated_at", "deleted_at"}

func setupMissionMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewRepository(sqlxDB), mock, func() { sqlxDB.Close() }
}

func missionRow(id, owner int, status Status, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(missionCols).AddRow(id, owner, "Paint fence", "Two coats", "Lyon", "painting", 15000,
		now.Add(24*time.Hour), now.Add(28*time.Hour), false, string(status), now, now, nil)
}

func TestRepository_Create(t *testing.T) {
	repo, mock, close := setupMissionMock(t)
	defer close()
	now := time.Now()

	req := CreateRequest{
		Title: "Paint fence", Description: "Two coats", City: "Lyon", Category: "painting",
		BudgetCents: 15000, StartsAt: now.Add(24 * time.Hour), EndsAt: now.Add(28 * time.Hour),
	}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO missions (owner_id, title, description, city, category, budget_cents, starts_at, ends_at, featured)")).
		WithArgs(7, req.Title, req.Description, req.City, req.Category, req.BudgetCents, req.StartsAt, req.EndsAt, false).
		WillReturnRows(missionRow(11, 7, StatusOpen, now))

	m, err := repo.Create(context.Background(), 7, req)
	require.NoError(t, err)
	assert.Equal(t, 11, m.ID)
	assert.Equal(t, StatusOpen, m.Status)
	assert.Nil(t, m.DeletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID(t *testing.T) {
	repo, mock, close := setupMissionMock(t)
	defer close()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM missions WHERE id = $1 AND deleted_at IS NULL")).
			WithArgs(11).
			WillReturnRows(missionRow(11, 7, StatusOpen, time.Now()))

		m, err := repo.GetByID(context.Background(), 11)
		require.NoError(t, err)
		assert.Equal(t, 7, m.OwnerID)
	})

	t.Run("deleted or missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM missions WHERE id = $1 AND deleted_at IS NULL")).
			WithArgs(12).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(context.Background(), 12)
		assert.ErrorIs(t, err, ErrMissionNotFound)
	})
}

func TestRepository_ListOpen(t *testing.T) {
	repo, mock, close := setupMissionMock(t)
	defer close()

	t.Run("filters and paging", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'open' AND deleted_at IS NULL AND LOWER(city) = LOWER($1) AND category = $2 ORDER BY featured DESC, created_at DESC LIMIT $3 OFFSET $4")).
			WithArgs("lyon", "painting", 5, 10).
			WillReturnRows(missionRow(1, 7, StatusOpen, time.Now()))

		missions, err := repo.ListOpen(context.Background(), ListFilter{City: "lyon", Category: "painting", Limit: 5, Offset: 10})
		require.NoError(t, err)
		assert.Len(t, missions, 1)
	})

	t.Run("defaults and caps", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'open' AND deleted_at IS NULL ORDER BY featured DESC, created_at DESC LIMIT $1 OFFSET $2")).
			WithArgs(maxPageSize, 0).
			WillReturnRows(sqlmock.NewRows(missionCols))

		missions, err := repo.ListOpen(context.Background(), ListFilter{Limit: 1000, Offset: -3})
		require.NoError(t, err)
		assert.NotNil(t, missions)
		assert.Empty(t, missions)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SetStatus(t *testing.T) {
	repo, mock, close := setupMissionMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE missions SET status = $2")).
		WithArgs(11, StatusClosed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetStatus(context.Background(), 11, StatusClosed))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE missions SET status = $2")).
		WithArgs(11, StatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetStatus(context.Background(), 11, StatusCancelled), ErrMissionNotOpen)
}

func TestRepository_Update(t *testing.T) {
	repo, mock, close := setupMissionMock(t)
	defer close()

	title := "Paint the fence"
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE missions SET title = COALESCE($2, title)")).
		WithArgs(11, &title, nil, nil, nil, nil, nil, nil).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), 11, UpdateRequest{Title: &title})
	assert.ErrorIs(t, err, ErrMissionNotOpen)
}

func TestRepository_SoftDelete(t *testing.T) {
	repo, mock, close := setupMissionMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE missions SET deleted_at = NOW()")).
		WithArgs(11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SoftDelete(context.Background(), 11))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE missions SET deleted_at = NOW()")).
		WithArgs(11).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SoftDelete(context.Background(), 11), ErrMissionNotFound)
}
