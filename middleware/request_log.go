package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-appgen/logger"
)

// RequestLogConfig configures the request logging middleware.
type RequestLogConfig struct {
	// SkipPaths are not logged (health probes, metrics scrapes).
	SkipPaths []string
}

// RequestLog logs every request as a structured line, classified by
// status code: 5xx error, 4xx warn, everything else info.
func RequestLog() gin.HandlerFunc {
	return RequestLogWithConfig(RequestLogConfig{})
}

// RequestLogWithConfig creates the middleware with custom configuration.
func RequestLogWithConfig(cfg RequestLogConfig) gin.HandlerFunc {
	skipPaths := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}
	log := logger.GetLogger("http")

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		ctx := c.Request.Context()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", latency),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.ErrorCtx(ctx, "request completed", fields...)
		case status >= 400:
			log.WarnCtx(ctx, "request completed", fields...)
		default:
			log.InfoCtx(ctx, "request completed", fields...)
		}
	}
}
