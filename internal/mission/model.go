package mission

import (
	"time"

	"mijob/internal/gate"
	"mijob/internal/ledger"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

type Mission struct {
	ID          int        `db:"id" json:"id"`
	OwnerID     int        `db:"owner_id" json:"owner_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	City        string     `db:"city" json:"city"`
	Category    string     `db:"category" json:"category"`
	BudgetCents int64      `db:"budget_cents" json:"budget_cents"`
	StartsAt    time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt      time.Time  `db:"ends_at" json:"ends_at"`
	Featured    bool       `db:"featured" json:"featured"`
	Status      Status     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
}

type CreateRequest struct {
	Title       string    `json:"title" validate:"required,min=3,max=120"`
	Description string    `json:"description" validate:"required,max=5000"`
	City        string    `json:"city" validate:"required,max=80"`
	Category    string    `json:"category" validate:"required,max=80"`
	BudgetCents int64     `json:"budget_cents" validate:"gte=0"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Featured    bool      `json:"featured"`
}

// UpdateRequest changes only the fields that are present.
type UpdateRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=3,max=120"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	City        *string    `json:"city" validate:"omitempty,min=1,max=80"`
	Category    *string    `json:"category" validate:"omitempty,min=1,max=80"`
	BudgetCents *int64     `json:"budget_cents" validate:"omitempty,gte=0"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

type ListFilter struct {
	City     string
	Category string
	Limit    int
	Offset   int
}

// CreateResponse reports the mission together with what admitted it and
// what it cost.
type CreateResponse struct {
	Mission     *Mission            `json:"mission"`
	Entitlement *gate.Decision      `json:"entitlement"`
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
	Warning     string              `json:"warning,omitempty"`
}
