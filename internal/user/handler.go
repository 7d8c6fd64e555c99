package user

import (
	"errors"
	"net/http"

	"mijob/internal/api"
	"mijob/internal/apperrors"
	"mijob/internal/auth"
	"mijob/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailExists):
			api.WriteError(c, apperrors.Conflict("Email already registered"))
		case errors.Is(err, ErrInvalidRole):
			api.WriteError(c, apperrors.InvalidInput("role", "must be worker, company or individual"))
		default:
			logger.WithError(err).Error("registration failed")
			api.WriteError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			api.WriteError(c, apperrors.Unauthorized("Invalid email or password"))
			return
		}
		logger.WithError(err).Error("login failed")
		api.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BadRequest(c, "refresh_token is required")
		return
	}

	resp, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			api.WriteError(c, apperrors.NotFound("User"))
			return
		}
		api.WriteError(c, apperrors.Unauthorized("Invalid or expired refresh token"))
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.WriteError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	u, err := h.service.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			api.WriteError(c, apperrors.NotFound("User"))
			return
		}
		api.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}
