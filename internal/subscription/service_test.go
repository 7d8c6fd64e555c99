package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"mijob/internal/quota"
	"mijob/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Activate(ctx context.Context, userID int, spec quota.PlanSpec, from, until time.Time) (*Subscription, error) {
	args := m.Called(ctx, userID, spec, from, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func (m *MockRepository) History(ctx context.Context, userID int) ([]Subscription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]Subscription), args.Error(1)
}

type fixedUsage map[quota.Action]int

func (f fixedUsage) Used(ctx context.Context, userID int, action quota.Action, now time.Time) (int, error) {
	if n, ok := f[action]; ok {
		return n, nil
	}
	return 0, errors.New("counter down")
}

var clock = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newService(repo Repository, counter UsageCounter) *Service {
	s := NewService(repo, quota.DefaultTable(), counter)
	s.now = func() time.Time { return clock }
	return s
}

func TestService_Activate(t *testing.T) {
	t.Run("one month by default", func(t *testing.T) {
		repo := new(MockRepository)
		spec, _ := quota.DefaultTable().Spec(quota.PlanBasic)
		repo.On("Activate", mock.Anything, 5, spec, clock, clock.AddDate(0, 1, 0)).
			Return(&Subscription{ID: 1, UserID: 5, Plan: quota.PlanBasic}, nil)

		sub, err := newService(repo, fixedUsage{}).Activate(context.Background(), 5, ActivateRequest{Plan: "basic"})
		require.NoError(t, err)
		assert.Equal(t, quota.PlanBasic, sub.Plan)
		repo.AssertExpectations(t)
	})

	t.Run("several months", func(t *testing.T) {
		repo := new(MockRepository)
		spec, _ := quota.DefaultTable().Spec(quota.PlanPremium)
		repo.On("Activate", mock.Anything, 5, spec, clock, clock.AddDate(0, 3, 0)).
			Return(&Subscription{ID: 2, Plan: quota.PlanPremium}, nil)

		_, err := newService(repo, fixedUsage{}).Activate(context.Background(), 5, ActivateRequest{Plan: "premium", Months: 3})
		require.NoError(t, err)
	})

	t.Run("unknown plan", func(t *testing.T) {
		_, err := newService(new(MockRepository), fixedUsage{}).Activate(context.Background(), 5, ActivateRequest{Plan: "unsubscribed"})
		assert.ErrorIs(t, err, ErrUnknownPlan)
	})
}

func TestService_Usage(t *testing.T) {
	end := clock.AddDate(0, 0, 20)
	company := &user.User{ID: 5, Role: user.RoleCompany, Plan: quota.PlanBasic, SubscriptionEnd: &end}

	t.Run("active plan", func(t *testing.T) {
		u, err := newService(new(MockRepository), fixedUsage{quota.ActionMission: 2, quota.ActionContact: 12}).
			Usage(context.Background(), company)
		require.NoError(t, err)

		assert.True(t, u.Active)
		assert.Equal(t, Allowance{Used: 2, Limit: 3, Remaining: 1}, u.Missions)
		assert.Equal(t, Allowance{Used: 12, Limit: 10, Remaining: 0}, u.Contacts)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), u.Window.From)
		assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), u.Window.To)
	})

	t.Run("expired plan has no allowance", func(t *testing.T) {
		past := clock.AddDate(0, 0, -1)
		expired := &user.User{ID: 5, Role: user.RoleCompany, Plan: quota.PlanBasic, SubscriptionEnd: &past}

		u, err := newService(new(MockRepository), fixedUsage{quota.ActionMission: 1, quota.ActionContact: 0}).
			Usage(context.Background(), expired)
		require.NoError(t, err)
		assert.False(t, u.Active)
		assert.Equal(t, 0, u.Missions.Limit)
	})

	t.Run("individuals have no plan", func(t *testing.T) {
		_, err := newService(new(MockRepository), fixedUsage{}).Usage(context.Background(), &user.User{Role: user.RoleIndividual})
		assert.ErrorIs(t, err, ErrNoPlanAccount)
	})

	t.Run("counter failure", func(t *testing.T) {
		_, err := newService(new(MockRepository), fixedUsage{}).Usage(context.Background(), company)
		assert.ErrorContains(t, err, "counter down")
	})
}
