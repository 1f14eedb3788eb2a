package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kumasanboshi/monster-buttle-sub001/internal/auth"
)

const userIDKey = "userID"

// TokenVerifier checks an access token.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware requires a valid bearer token and stores the user id on the
// gin context.
func AuthMiddleware(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		token := strings.TrimPrefix(h, "Bearer ")

		claims, err := v.Verify(token)
		if err != nil {
			writeError(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	s := c.GetString(userIDKey)
	return s, s != ""
}

// RequestLogger logs one line per request through slog.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
