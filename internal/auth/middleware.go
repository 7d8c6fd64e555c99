package auth

import (
	"errors"
	"strings"

	"mijob/internal/api"
	"mijob/internal/apperrors"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID    = "user_id"
	ctxUserEmail = "user_email"
	ctxUserRole  = "user_role"
)

func AuthMiddleware(accessTokenSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			api.AbortWithError(c, apperrors.Unauthorized("Authorization header required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) != "Bearer" {
			api.AbortWithError(c, apperrors.Unauthorized("Invalid authorization header format"))
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			api.AbortWithError(c, apperrors.Unauthorized("Token is empty"))
			return
		}

		claims, err := ParseAccessToken(tokenString, accessTokenSecret)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				api.AbortWithError(c, apperrors.Unauthorized("Token expired"))
			case errors.Is(err, ErrInvalidTokenType):
				api.AbortWithError(c, apperrors.Unauthorized("Access token required"))
			default:
				api.AbortWithError(c, apperrors.Unauthorized("Invalid or malformed token"))
			}
			return
		}

		SetIdentity(c, claims)
		c.Next()
	}
}

// SetIdentity stores the authenticated caller on the request context.
func SetIdentity(c *gin.Context, claims *Claims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxUserEmail, claims.Email)
	c.Set(ctxUserRole, claims.Role)
}

// RequireRole admits callers whose role is one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			api.AbortWithError(c, apperrors.Unauthorized("User role not found"))
			return
		}

		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		api.AbortWithError(c, apperrors.Forbidden("Insufficient permissions"))
	}
}

func GetUserID(c *gin.Context) (int, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

func GetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxUserRole)
	if !exists {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
