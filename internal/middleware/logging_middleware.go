package middleware

import (
	"time"

	"marketchat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Paths polled by infrastructure; logging them is noise.
var quietPaths = map[string]bool{
	"/ping":   true,
	"/health": true,
}

// LoggingMiddleware emits one structured entry per request, annotated with
// the request/user IDs carried on the context.
func LoggingMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if quietPaths[path] {
			return
		}
		log := l
		if log == nil {
			log = logger.GetGlobalLogger()
		}
		if log == nil {
			return
		}

		log.WithContext(c.Request.Context()).Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
