// Package usage counts guarded actions inside the current calendar month.
// Nothing is stored: every call re-scans the action records, so the count
// resets on its own when the month rolls over.
package usage

import (
	"context"
	"fmt"
	"time"

	"mijob/internal/db"
	"mijob/internal/quota"
)

// MonthWindow returns the UTC calendar month containing now as the half-open
// interval [from, to).
func MonthWindow(now time.Time) (from, to time.Time) {
	now = now.UTC()
	from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// Soft-deleted missions still count towards the month.
var queries = map[quota.Action]string{
	quota.ActionMission: `SELECT COUNT(*) FROM missions WHERE owner_id = $1 AND created_at >= $2 AND created_at < $3`,
	quota.ActionContact: `SELECT COUNT(*) FROM conversations WHERE initiator_id = $1 AND created_at >= $2 AND created_at < $3`,
}

type Counter struct {
	db db.DBTX
}

func NewCounter(conn db.DBTX) *Counter {
	return &Counter{db: conn}
}

// Used returns how many action records userID created in the month containing now.
func (c *Counter) Used(ctx context.Context, userID int, action quota.Action, now time.Time) (int, error) {
	query, ok := queries[action]
	if !ok {
		return 0, fmt.Errorf("usage: unknown action %q", action)
	}

	from, to := MonthWindow(now)
	var n int
	if err := c.db.GetContext(ctx, &n, query, userID, from, to); err != nil {
		return 0, fmt.Errorf("count %s usage: %w", action, err)
	}
	return n, nil
}
