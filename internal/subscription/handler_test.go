package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mijob/internal/quota"
	"mijob/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type accountsFunc func(ctx context.Context, id int) (*user.User, error)

func (f accountsFunc) FindByID(ctx context.Context, id int) (*user.User, error) { return f(ctx, id) }

func newRouter(svc *Service, acct *user.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, accountsFunc(func(ctx context.Context, id int) (*user.User, error) {
		return acct, nil
	}))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if acct != nil {
			c.Set("user_id", acct.ID)
		}
	})
	r.GET("/subscriptions/plans", h.ListPlans)
	r.GET("/subscriptions/usage", h.Usage)
	r.POST("/admin/users/:id/subscription", h.Activate)
	return r
}

func TestHandler_ListPlans(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(newService(new(MockRepository), fixedUsage{}), nil).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscriptions/plans", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var plans []quota.PlanSpec
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plans))
	require.Len(t, plans, 3)
	assert.Equal(t, quota.PlanBasic, plans[0].Plan)
}

func TestHandler_Usage(t *testing.T) {
	t.Run("company", func(t *testing.T) {
		end := clock.AddDate(0, 1, 0)
		acct := &user.User{ID: 5, Role: user.RoleCompany, Plan: quota.PlanStandard, SubscriptionEnd: &end}

		w := httptest.NewRecorder()
		newRouter(newService(new(MockRepository), fixedUsage{quota.ActionMission: 4, quota.ActionContact: 1}), acct).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscriptions/usage", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var u Usage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
		assert.Equal(t, 6, u.Missions.Remaining)
	})

	t.Run("individual", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(newService(new(MockRepository), fixedUsage{}), &user.User{ID: 2, Role: user.RoleIndividual}).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscriptions/usage", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestHandler_Activate(t *testing.T) {
	admin := &user.User{ID: 1, Role: user.RoleAdmin}

	t.Run("activated", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Activate", mock.Anything, 5, mock.Anything, clock, clock.AddDate(0, 1, 0)).
			Return(&Subscription{ID: 1, UserID: 5, Plan: quota.PlanStandard}, nil)

		w := httptest.NewRecorder()
		newRouter(newService(repo, fixedUsage{}), admin).ServeHTTP(w,
			httptest.NewRequest(http.MethodPost, "/admin/users/5/subscription", bytes.NewBufferString(`{"plan":"standard"}`)))

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("unknown plan rejected by validation", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(newService(new(MockRepository), fixedUsage{}), admin).ServeHTTP(w,
			httptest.NewRequest(http.MethodPost, "/admin/users/5/subscription", bytes.NewBufferString(`{"plan":"gold"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not a company", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Activate", mock.Anything, 7, mock.Anything, mock.Anything, mock.Anything).Return(nil, ErrNotCompany)

		w := httptest.NewRecorder()
		newRouter(newService(repo, fixedUsage{}), admin).ServeHTTP(w,
			httptest.NewRequest(http.MethodPost, "/admin/users/7/subscription", bytes.NewBufferString(`{"plan":"basic"}`)))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
