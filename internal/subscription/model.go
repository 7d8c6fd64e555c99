package subscription

import (
	"time"

	"mijob/internal/quota"
)

// Subscription is one plan activation in a company's history.
type Subscription struct {
	ID         int        `db:"id" json:"id"`
	UserID     int        `db:"user_id" json:"user_id"`
	Plan       quota.Plan `db:"plan" json:"plan"`
	PriceCents int64      `db:"price_cents" json:"price_cents"`
	ValidFrom  time.Time  `db:"valid_from" json:"valid_from"`
	ValidUntil time.Time  `db:"valid_until" json:"valid_until"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

type ActivateRequest struct {
	Plan   string `json:"plan" validate:"required,oneof=basic standard premium"`
	Months int    `json:"months" validate:"omitempty,gte=1,lte=12"`
}

type Allowance struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Usage is a company's consumption of its plan in the current month.
type Usage struct {
	Plan            quota.Plan `json:"plan"`
	Active          bool       `json:"active"`
	SubscriptionEnd *time.Time `json:"subscription_end,omitempty"`
	Window          Window     `json:"window"`
	Missions        Allowance  `json:"missions"`
	Contacts        Allowance  `json:"contacts"`
}
