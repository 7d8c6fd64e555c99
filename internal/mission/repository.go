package mission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var (
	ErrMissionNotFound = errors.New("mission not found")
	ErrMissionNotOpen  = errors.New("mission is not open")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	columns = `id, owner_id, title, description, city, category, budget_cents,
		starts_at, ends_at, featured, status, created_at, updated_at, deleted_at`
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, ownerID int, req CreateRequest) (*Mission, error) {
	query := `
		INSERT INTO missions (owner_id, title, description, city, category, budget_cents, starts_at, ends_at, featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + columns

	var m Mission
	err := r.db.GetContext(ctx, &m, query,
		ownerID, req.Title, req.Description, req.City, req.Category,
		req.BudgetCents, req.StartsAt, req.EndsAt, req.Featured,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Mission, error) {
	query := `SELECT ` + columns + ` FROM missions WHERE id = $1 AND deleted_at IS NULL`

	var m Mission
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMissionNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListOpen returns open missions, featured first, newest first.
func (r *repository) ListOpen(ctx context.Context, f ListFilter) ([]Mission, error) {
	where := []string{"status = 'open'", "deleted_at IS NULL"}
	args := []any{}

	if f.City != "" {
		args = append(args, f.City)
		where = append(where, fmt.Sprintf("LOWER(city) = LOWER($%d)", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}

	limit, offset := page(f.Limit, f.Offset)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s FROM missions WHERE %s
		ORDER BY featured DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, columns, strings.Join(where, " AND "), len(args)-1, len(args))

	missions := []Mission{}
	if err := r.db.SelectContext(ctx, &missions, query, args...); err != nil {
		return nil, err
	}
	return missions, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID int) ([]Mission, error) {
	query := `SELECT ` + columns + ` FROM missions
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	missions := []Mission{}
	if err := r.db.SelectContext(ctx, &missions, query, ownerID); err != nil {
		return nil, err
	}
	return missions, nil
}

func (r *repository) Update(ctx context.Context, id int, req UpdateRequest) (*Mission, error) {
	query := `
		UPDATE missions SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			city = COALESCE($4, city),
			category = COALESCE($5, category),
			budget_cents = COALESCE($6, budget_cents),
			starts_at = COALESCE($7, starts_at),
			ends_at = COALESCE($8, ends_at),
			updated_at = NOW()
		WHERE id = $1 AND status = 'open' AND deleted_at IS NULL
		RETURNING ` + columns

	var m Mission
	err := r.db.GetContext(ctx, &m, query, id,
		req.Title, req.Description, req.City, req.Category,
		req.BudgetCents, req.StartsAt, req.EndsAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMissionNotOpen
		}
		return nil, err
	}
	return &m, nil
}

// SetStatus moves an open mission to status.
func (r *repository) SetStatus(ctx context.Context, id int, status Status) error {
	query := `
		UPDATE missions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'open' AND deleted_at IS NULL
	`
	return expectOne(r.db.ExecContext(ctx, query, id, status))
}

// SoftDelete hides the mission. The row is kept so it still counts toward
// the owner's monthly usage.
func (r *repository) SoftDelete(ctx context.Context, id int) error {
	query := `UPDATE missions SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMissionNotFound
	}
	return nil
}

func expectOne(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMissionNotOpen
	}
	return nil
}

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
