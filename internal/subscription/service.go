package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mijob/internal/metrics"
	"mijob/internal/quota"
	"mijob/internal/usage"
	"mijob/internal/user"
)

var (
	ErrUnknownPlan   = errors.New("unknown plan")
	ErrNoPlanAccount = errors.New("only companies hold a plan")
)

// UsageCounter is satisfied by usage.Counter.
type UsageCounter interface {
	Used(ctx context.Context, userID int, action quota.Action, now time.Time) (int, error)
}

type Service struct {
	repo   Repository
	limits *quota.Table
	usage  UsageCounter
	now    func() time.Time
}

func NewService(repo Repository, limits *quota.Table, counter UsageCounter) *Service {
	return &Service{repo: repo, limits: limits, usage: counter, now: time.Now}
}

func (s *Service) Plans() []quota.PlanSpec {
	return s.limits.Catalogue()
}

// Activate puts a company on plan for the given number of months starting
// now. It replaces any current window.
func (s *Service) Activate(ctx context.Context, userID int, req ActivateRequest) (*Subscription, error) {
	plan := quota.ParsePlan(req.Plan)
	spec, ok := s.limits.Spec(plan)
	if plan == quota.PlanUnsubscribed || !ok {
		return nil, ErrUnknownPlan
	}

	months := req.Months
	if months <= 0 {
		months = 1
	}
	from := s.now().UTC()
	until := from.AddDate(0, months, 0)

	sub, err := s.repo.Activate(ctx, userID, spec, from, until)
	if err != nil {
		return nil, fmt.Errorf("activate %s: %w", plan, err)
	}
	metrics.RecordSubscription(string(plan))
	return sub, nil
}

func (s *Service) History(ctx context.Context, userID int) ([]Subscription, error) {
	return s.repo.History(ctx, userID)
}

// Usage reports the company's monthly allowances as the gate would count
// them right now.
func (s *Service) Usage(ctx context.Context, account *user.User) (*Usage, error) {
	if account.Role != user.RoleCompany {
		return nil, ErrNoPlanAccount
	}

	now := s.now()
	from, to := usage.MonthWindow(now)
	u := &Usage{
		Plan:            account.Plan,
		Active:          account.SubscriptionActive(now),
		SubscriptionEnd: account.SubscriptionEnd,
		Window:          Window{From: from, To: to},
	}

	var err error
	if u.Missions, err = s.allowance(ctx, account, quota.ActionMission, now, u.Active); err != nil {
		return nil, err
	}
	if u.Contacts, err = s.allowance(ctx, account, quota.ActionContact, now, u.Active); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) allowance(ctx context.Context, account *user.User, action quota.Action, now time.Time, active bool) (Allowance, error) {
	used, err := s.usage.Used(ctx, account.ID, action, now)
	if err != nil {
		return Allowance{}, fmt.Errorf("count %s usage: %w", action, err)
	}

	limit := 0
	if active {
		limit = s.limits.Limit(account.Plan, action)
	}
	return Allowance{Used: used, Limit: limit, Remaining: max(limit-used, 0)}, nil
}
