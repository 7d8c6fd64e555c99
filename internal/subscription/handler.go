package subscription

import (
	"errors"
	"net/http"
	"strconv"

	"mijob/internal/api"
	"mijob/internal/apperrors"
	"mijob/internal/auth"
	"mijob/internal/gate"
	"mijob/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service  *Service
	accounts gate.AccountLoader
}

func NewHandler(service *Service, accounts gate.AccountLoader) *Handler {
	return &Handler{service: service, accounts: accounts}
}

func (h *Handler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Plans())
}

func (h *Handler) Usage(c *gin.Context) {
	acct, err := gate.LoadAccount(c, h.accounts)
	if err != nil {
		api.WriteError(c, err)
		return
	}

	u, err := h.service.Usage(c.Request.Context(), acct)
	if err != nil {
		if errors.Is(err, ErrNoPlanAccount) {
			api.WriteError(c, apperrors.Forbidden("Only companies have plan usage"))
			return
		}
		api.WriteError(c, apperrors.Unavailable("Could not count usage, try again", err))
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) History(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.WriteError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	subs, err := h.service.History(c.Request.Context(), userID)
	if err != nil {
		logger.WithError(err).Error("failed to load subscription history")
		api.WriteError(c, apperrors.Database(err))
		return
	}
	c.JSON(http.StatusOK, subs)
}

// Activate is the admin entry point used once the payment collaborator has
// confirmed a plan purchase.
func (h *Handler) Activate(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil || userID <= 0 {
		api.BadRequest(c, "Invalid user ID")
		return
	}

	var req ActivateRequest
	if !api.BindAndValidate(c, &req) {
		return
	}

	sub, err := h.service.Activate(c.Request.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownPlan):
			api.WriteError(c, apperrors.InvalidInput("plan", "unknown plan"))
		case errors.Is(err, ErrNotCompany):
			api.WriteError(c, apperrors.NotFound("Company"))
		default:
			logger.WithError(err).Error("subscription activation failed")
			api.WriteError(c, apperrors.Database(err))
		}
		return
	}

	logger.Info("subscription activated", "user_id", userID, "plan", sub.Plan, "valid_until", sub.ValidUntil)
	c.JSON(http.StatusCreated, sub)
}
