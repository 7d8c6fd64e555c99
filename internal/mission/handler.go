package mission

import (
	"context"
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
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Create runs behind gate.RequireEntitlement, which has already admitted the
// caller and left the Decision on the context.
func (h *Handler) Create(c *gin.Context) {
	d, ok := gate.DecisionFrom(c)
	if !ok {
		api.WriteError(c, apperrors.Internal("Entitlement decision missing"))
		return
	}

	var req CreateRequest
	if !api.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.service.Create(c.Request.Context(), d.AccountID, d, req)
	if err != nil {
		writeError(c, err)
		return
	}

	if resp.Warning != "" {
		logger.Warn("mission created without settlement", "mission_id", resp.Mission.ID, "user_id", d.AccountID)
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := missionID(c)
	if !ok {
		return
	}

	m, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) ListOpen(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	missions, err := h.service.ListOpen(c.Request.Context(), ListFilter{
		City:     c.Query("city"),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, missions)
}

func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.WriteError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	missions, err := h.service.ListMine(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, missions)
}

func (h *Handler) Update(c *gin.Context) {
	userID, id, ok := ownerAndID(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if !api.BindAndValidate(c, &req) {
		return
	}

	m, err := h.service.Update(c.Request.Context(), userID, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) Close(c *gin.Context) {
	h.change(c, h.service.Close, "Mission closed")
}

func (h *Handler) Cancel(c *gin.Context) {
	h.change(c, h.service.Cancel, "Mission cancelled")
}

func (h *Handler) Delete(c *gin.Context) {
	h.change(c, h.service.Delete, "Mission deleted")
}

func (h *Handler) change(c *gin.Context, op func(ctx context.Context, ownerID, id int) error, done string) {
	userID, id, ok := ownerAndID(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), userID, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Success: true, Message: done})
}

func ownerAndID(c *gin.Context) (int, int, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.WriteError(c, apperrors.Unauthorized("User not authenticated"))
		return 0, 0, false
	}
	id, ok := missionID(c)
	return userID, id, ok
}

func missionID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		api.BadRequest(c, "Invalid mission ID")
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMissionNotFound):
		api.WriteError(c, apperrors.NotFound("Mission"))
	case errors.Is(err, ErrNotOwner):
		api.WriteError(c, apperrors.Forbidden(ErrNotOwner.Error()))
	case errors.Is(err, ErrMissionNotOpen):
		api.WriteError(c, apperrors.Conflict("Mission is no longer open"))
	case errors.Is(err, ErrStartsInPast):
		api.WriteError(c, apperrors.InvalidInput("starts_at", "must not be in the past"))
	case errors.Is(err, ErrInvalidWindow):
		api.WriteError(c, apperrors.InvalidInput("ends_at", "must be after starts_at"))
	default:
		logger.WithError(err).Error("mission request failed")
		api.WriteError(c, err)
	}
}
