package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"mijob/internal/api"
	"mijob/internal/apperrors"
	"mijob/internal/auth"
	"mijob/internal/quota"
	"mijob/internal/user"

	"github.com/gin-gonic/gin"
)

const (
	ctxAccount  = "account"
	ctxDecision = "entitlement"

	maxPeekBytes = 1 << 20
)

// AccountLoader is satisfied by user.Repository.
type AccountLoader interface {
	FindByID(ctx context.Context, id int) (*user.User, error)
}

// RequireEntitlement runs the gate for action before the handler. On
// admission the account and Decision are stored on the context; on refusal
// the request is aborted with the structured error body.
func RequireEntitlement(g *Gate, accounts AccountLoader, action quota.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		acct, err := LoadAccount(c, accounts)
		if err != nil {
			api.AbortWithError(c, err)
			return
		}

		req := Request{Account: acct, Action: action}
		if action == quota.ActionMission {
			req.Featured = peekFeatured(c)
		}

		d, err := g.Check(c.Request.Context(), req)
		if err != nil {
			api.AbortWithError(c, err)
			return
		}

		c.Set(ctxDecision, d)
		c.Next()
	}
}

// LoadAccount resolves the authenticated caller to a full account and caches
// it on the context. A lookup failure fails closed.
func LoadAccount(c *gin.Context, accounts AccountLoader) (*user.User, error) {
	if acct, ok := AccountFrom(c); ok {
		return acct, nil
	}

	userID, ok := auth.GetUserID(c)
	if !ok {
		return nil, apperrors.Unauthorized("User not authenticated")
	}

	acct, err := accounts.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, apperrors.Unauthorized("Account no longer exists")
		}
		return nil, apperrors.Unavailable("Could not load account, try again", err)
	}

	c.Set(ctxAccount, acct)
	return acct, nil
}

func AccountFrom(c *gin.Context) (*user.User, bool) {
	v, ok := c.Get(ctxAccount)
	if !ok {
		return nil, false
	}
	acct, ok := v.(*user.User)
	return acct, ok
}

func DecisionFrom(c *gin.Context) (*Decision, bool) {
	v, ok := c.Get(ctxDecision)
	if !ok {
		return nil, false
	}
	d, ok := v.(*Decision)
	return d, ok
}

// peekFeatured reads the featured flag from a JSON body and restores the body
// for the handler. Malformed bodies read as not featured; the handler rejects
// them on bind.
func peekFeatured(c *gin.Context) bool {
	if c.Request.Body == nil {
		return false
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPeekBytes))
	c.Request.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return false
	}

	var body struct {
		Featured bool `json:"featured"`
	}
	_ = json.Unmarshal(data, &body)
	return body.Featured
}
