package conversation

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
	service  Service
	accounts gate.AccountLoader
}

func NewHandler(service Service, accounts gate.AccountLoader) *Handler {
	return &Handler{service: service, accounts: accounts}
}

// Start answers 201 when a conversation was created and charged, 200 when
// an existing one was returned.
func (h *Handler) Start(c *gin.Context) {
	acct, err := gate.LoadAccount(c, h.accounts)
	if err != nil {
		api.WriteError(c, err)
		return
	}

	var req StartRequest
	if !api.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.service.Start(c.Request.Context(), acct, req)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

func (h *Handler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	list, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Messages(c *gin.Context) {
	userID, convID, ok := userAndConversation(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	before, _ := strconv.ParseInt(c.DefaultQuery("before", "0"), 10, 64)

	msgs, err := h.service.Messages(c.Request.Context(), userID, convID, limit, before)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) Send(c *gin.Context) {
	userID, convID, ok := userAndConversation(c)
	if !ok {
		return
	}

	var req SendRequest
	if !api.BindAndValidate(c, &req) {
		return
	}

	msg, err := h.service.Send(c.Request.Context(), userID, convID, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) MarkRead(c *gin.Context) {
	userID, convID, ok := userAndConversation(c)
	if !ok {
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), userID, convID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

func requireUser(c *gin.Context) (int, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.WriteError(c, apperrors.Unauthorized("User not authenticated"))
	}
	return userID, ok
}

func userAndConversation(c *gin.Context) (int, int, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		api.BadRequest(c, "Invalid conversation ID")
		return 0, 0, false
	}
	return userID, id, true
}

func writeError(c *gin.Context, err error) {
	if _, ok := apperrors.AsAppError(err); ok {
		api.WriteError(c, err)
		return
	}

	switch {
	case errors.Is(err, ErrConversationNotFound):
		api.WriteError(c, apperrors.NotFound("Conversation"))
	case errors.Is(err, ErrParticipantNotFound):
		api.WriteError(c, apperrors.NotFound("Worker"))
	case errors.Is(err, ErrNotParticipant):
		api.WriteError(c, apperrors.Forbidden(ErrNotParticipant.Error()))
	case errors.Is(err, ErrSelfContact):
		api.WriteError(c, apperrors.InvalidInput("participant_id", ErrSelfContact.Error()))
	case errors.Is(err, ErrNotWorker):
		api.WriteError(c, apperrors.InvalidInput("participant_id", ErrNotWorker.Error()))
	default:
		logger.WithError(err).Error("conversation request failed")
		api.WriteError(c, err)
	}
}
