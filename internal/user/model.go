package user

import (
	"time"

	"mijob/internal/quota"
)

type Role string

const (
	RoleWorker     Role = "worker"
	RoleCompany    Role = "company"
	RoleIndividual Role = "individual"
	RoleAdmin      Role = "admin"
)

// SelfRegistrable reports whether the role can be chosen at sign-up.
func (r Role) SelfRegistrable() bool {
	return r == RoleWorker || r == RoleCompany || r == RoleIndividual
}

type User struct {
	ID                int        `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	Email             string     `db:"email" json:"email"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	Role              Role       `db:"role" json:"role"`
	Plan              quota.Plan `db:"subscription_plan" json:"subscription_plan"`
	SubscriptionStart *time.Time `db:"subscription_start" json:"subscription_start,omitempty"`
	SubscriptionEnd   *time.Time `db:"subscription_end" json:"subscription_end,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// SubscriptionActive reports whether the user holds a paid plan whose window
// contains now. A plan without an end date does not expire.
func (u *User) SubscriptionActive(now time.Time) bool {
	if u.Plan == "" || u.Plan == quota.PlanUnsubscribed {
		return false
	}
	if u.SubscriptionStart != nil && now.Before(*u.SubscriptionStart) {
		return false
	}
	if u.SubscriptionEnd != nil && !now.Before(*u.SubscriptionEnd) {
		return false
	}
	return true
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     Role   `json:"role" binding:"required,oneof=worker company individual"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         *User  `json:"user"`
}
