package presence

import (
	"net/http"
	"strconv"
	"strings"

	"mijob/internal/api"
	"mijob/internal/apperrors"

	"github.com/gin-gonic/gin"
)

const maxLookup = 100

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// Presence answers GET /presence?ids=1,2,3 with {"online": {"1": true, ...}}.
func (h *Handler) Presence(c *gin.Context) {
	ids, err := parseIDs(c.Query("ids"))
	if err != nil {
		api.WriteError(c, err)
		return
	}

	online, err := h.hub.Online(c.Request.Context(), ids)
	if err != nil {
		api.WriteError(c, apperrors.Unavailable("Presence is unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": online})
}

func parseIDs(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.InvalidInput("ids", "at least one id is required")
	}

	parts := strings.Split(raw, ",")
	if len(parts) > maxLookup {
		return nil, apperrors.InvalidInput("ids", "at most 100 ids per request")
	}

	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id <= 0 {
			return nil, apperrors.InvalidInput("ids", "must be positive integers")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
