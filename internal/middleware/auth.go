package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"task-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// ContextUserID is the gin context key holding the authenticated uuid.UUID.
const ContextUserID = "user_id"

const (
	msgMissingCredentials = "Authentication credentials were not provided."
	msgInvalidHeader      = "Authorization header must use Bearer token"
)

// Authenticator resolves an access token to the account it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error)
}

// AuthMiddleware rejects requests without a valid bearer access token.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgMissingCredentials})
			return
		}

		scheme, tokenStr, found := strings.Cut(authHeader, " ")
		tokenStr = strings.TrimSpace(tokenStr)
		if !found || !strings.EqualFold(scheme, "Bearer") || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgInvalidHeader})
			return
		}

		userID, err := auth.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			message := services.ErrInvalidToken.Error()
			if errors.Is(err, services.ErrExpiredToken) {
				message = services.ErrExpiredToken.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// UserID returns the caller set by AuthMiddleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	value, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok || id.IsNil() {
		return uuid.Nil, false
	}
	return id, true
}
