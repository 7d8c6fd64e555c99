// Package gate decides whether an account may perform a guarded action
// before anything is written. Companies are held to monthly plan quotas,
// individuals pay per action in tokens, and every other role is refused.
package gate

import (
	"context"
	"time"

	"mijob/internal/apperrors"
	"mijob/internal/ledger"
	"mijob/internal/metrics"
	"mijob/internal/quota"
	"mijob/internal/user"
)

type Policy string

const (
	PolicySubscription Policy = "subscription"
	PolicyBalance      Policy = "balance"
)

// UsageCounter is satisfied by usage.Counter.
type UsageCounter interface {
	Used(ctx context.Context, userID int, action quota.Action, now time.Time) (int, error)
}

// BalanceReader is satisfied by ledger.Service.
type BalanceReader interface {
	Balance(ctx context.Context, userID int) (*ledger.Ledger, error)
}

// Costs are the token prices of guarded actions on the balance policy.
type Costs struct {
	Mission  int64
	Contact  int64
	Featured int64
}

func (c Costs) breakdown(action quota.Action, featured bool) Breakdown {
	b := Breakdown{}
	switch action {
	case quota.ActionMission:
		b.Base = c.Mission
		if featured {
			b.Featured = c.Featured
		}
	case quota.ActionContact:
		b.Base = c.Contact
	}
	return b
}

type Request struct {
	Account  *user.User
	Action   quota.Action
	Featured bool
}

type Breakdown struct {
	Base     int64 `json:"base"`
	Featured int64 `json:"featured,omitempty"`
}

func (b Breakdown) Total() int64 { return b.Base + b.Featured }

type QuotaUsage struct {
	Plan      quota.Plan `json:"plan"`
	Used      int        `json:"used"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
}

type TokenCost struct {
	Required        int64     `json:"required"`
	AvailableBefore int64     `json:"available_before"`
	Breakdown       Breakdown `json:"breakdown"`
}

// Decision is an admission. It is handed to Settlement once the guarded
// write has succeeded.
type Decision struct {
	AccountID int          `json:"-"`
	Email     string       `json:"-"`
	Name      string       `json:"-"`
	Action    quota.Action `json:"action"`
	Policy    Policy       `json:"policy"`
	Quota     *QuotaUsage  `json:"quota,omitempty"`
	Tokens    *TokenCost   `json:"tokens,omitempty"`
}

type Gate struct {
	limits   *quota.Table
	usage    UsageCounter
	balances BalanceReader
	costs    Costs
	now      func() time.Time
}

func New(limits *quota.Table, usage UsageCounter, balances BalanceReader, costs Costs) *Gate {
	return &Gate{
		limits:   limits,
		usage:    usage,
		balances: balances,
		costs:    costs,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for subscription windows and usage.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Check admits or refuses req. Refusals are *apperrors.AppError values whose
// Details carry the numbers behind the decision. Lookup failures refuse with
// a retryable SERVICE_UNAVAILABLE.
func (g *Gate) Check(ctx context.Context, req Request) (*Decision, error) {
	if req.Account == nil {
		return nil, apperrors.Unauthorized("User not authenticated")
	}
	if !req.Action.Valid() {
		return nil, apperrors.InvalidInput("action", "unknown guarded action")
	}

	var (
		d   *Decision
		err error
	)
	switch req.Account.Role {
	case user.RoleCompany:
		d, err = g.checkSubscription(ctx, req)
		g.record(req.Action, PolicySubscription, err)
	case user.RoleIndividual:
		d, err = g.checkBalance(ctx, req)
		g.record(req.Action, PolicyBalance, err)
	default:
		err = apperrors.Forbidden("Only companies and individuals can " + verb(req.Action))
		g.record(req.Action, "none", err)
	}
	return d, err
}

func (g *Gate) checkSubscription(ctx context.Context, req Request) (*Decision, error) {
	acct := req.Account
	now := g.now()

	if !acct.SubscriptionActive(now) {
		return nil, apperrors.SubscriptionRequired("An active subscription is required to " + verb(req.Action)).
			WithDetails(QuotaUsage{Plan: acct.Plan, Used: 0, Limit: 0, Remaining: 0})
	}

	limit := g.limits.Limit(acct.Plan, req.Action)
	used, err := g.usage.Used(ctx, acct.ID, req.Action, now)
	if err != nil {
		return nil, apperrors.Unavailable("Could not verify monthly usage, try again", err)
	}

	if used >= limit {
		return nil, apperrors.QuotaExceeded("Monthly " + string(req.Action) + " limit reached for your plan").
			WithDetails(QuotaUsage{Plan: acct.Plan, Used: used, Limit: limit, Remaining: 0})
	}

	d := g.decision(req, PolicySubscription)
	d.Quota = &QuotaUsage{Plan: acct.Plan, Used: used, Limit: limit, Remaining: limit - used}
	return d, nil
}

func (g *Gate) checkBalance(ctx context.Context, req Request) (*Decision, error) {
	b := g.costs.breakdown(req.Action, req.Featured)
	required := b.Total()

	l, err := g.balances.Balance(ctx, req.Account.ID)
	if err != nil {
		return nil, apperrors.Unavailable("Could not read token balance, try again", err)
	}

	if l.Balance < required {
		return nil, apperrors.InsufficientTokens("Not enough tokens to " + verb(req.Action)).
			WithDetails(map[string]any{
				"required":  required,
				"available": l.Balance,
				"breakdown": b,
			})
	}

	d := g.decision(req, PolicyBalance)
	d.Tokens = &TokenCost{Required: required, AvailableBefore: l.Balance, Breakdown: b}
	return d, nil
}

func (g *Gate) decision(req Request, p Policy) *Decision {
	return &Decision{
		AccountID: req.Account.ID,
		Email:     req.Account.Email,
		Name:      req.Account.Name,
		Action:    req.Action,
		Policy:    p,
	}
}

func (g *Gate) record(action quota.Action, p Policy, err error) {
	outcome := "allowed"
	if err != nil {
		outcome = string(apperrors.GetCode(err))
	}
	metrics.RecordGateDecision(string(action), string(p), outcome)
}

func verb(action quota.Action) string {
	if action == quota.ActionMission {
		return "post missions"
	}
	return "contact workers"
}
