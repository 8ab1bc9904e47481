package handlers

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/glaze-storefront/internal/storefront"
)

// SessionHeader carries the client session id in both directions.
const SessionHeader = "X-Session-Id"

const (
	sessionKey      = "session_id"
	maxSessionIDLen = 128
)

// session resolves the client session, minting an id when the request has
// none, and echoes it back.
func session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if id == "" || len(id) > maxSessionIDLen {
			id = storefront.NewSessionID()
		}
		c.Set(sessionKey, id)
		c.Header(SessionHeader, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"session_id", sessionID(c),
		)
	}
}

func (a *api) requireAdmin(c *gin.Context) {
	if err := a.shell.RequireAdmin(c.Request.Context(), sessionID(c)); err != nil {
		a.writeError(c, err)
		c.Abort()
		return
	}
	c.Next()
}
