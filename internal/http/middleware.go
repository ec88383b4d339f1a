package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/service"
)

const userContextKey = "currentUser"

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requireUser resolves the bearer token to a user and attaches it to the
// request context. The three failure modes are reported distinctly: missing
// token, failed verification, and a token whose user no longer exists.
func (h *Handler) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			respondAbort(c, http.StatusUnauthorized, "not authorized, no token")
			return
		}

		userID, err := h.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respondAbort(c, http.StatusUnauthorized, "not authorized, token failed")
			return
		}

		user, err := h.users.GetByID(c.Request.Context(), userID)
		if err != nil {
			// a vanished user is an auth failure; anything else is ours
			if errors.Is(err, service.ErrNotFound) {
				respondAbort(c, http.StatusUnauthorized, "not authorized, unknown user")
				return
			}
			h.logger.WithError(err).Error("resolve token user")
			respondAbort(c, http.StatusInternalServerError, "internal server error")
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, ok := value.(*domain.User)
	if !ok {
		return nil
	}
	return user
}
