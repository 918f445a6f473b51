// Package middleware provides the gin middlewares shared by the HTTP
// surface.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDKeyDefault is the context key the logger reads trace ids
	// from.
	TraceIDKeyDefault = "trace_id"

	// TraceIDHeaderDefault is the HTTP header carrying the trace id.
	TraceIDHeaderDefault = "X-Trace-ID"
)

// TraceConfig configures the TraceID middleware.
type TraceConfig struct {
	// TraceIDKey is the context key (default "trace_id"). Must match
	// the logger's trace_id_key so log lines pick the id up.
	TraceIDKey string

	// TraceIDHeader is the HTTP header key (default "X-Trace-ID").
	TraceIDHeader string

	// EnableResponseHeader writes the trace id back on the response.
	EnableResponseHeader bool

	// Generator creates ids for requests that arrive without one.
	Generator func() string
}

// DefaultTraceConfig returns the default trace configuration.
func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		TraceIDKey:           TraceIDKeyDefault,
		TraceIDHeader:        TraceIDHeaderDefault,
		EnableResponseHeader: true,
		Generator:            uuid.NewString,
	}
}

// TraceID extracts the trace id from the request header, generating one
// when absent, and injects it into the request context under
// cfg.TraceIDKey so every context-aware log line carries it.
func TraceID(cfg TraceConfig) gin.HandlerFunc {
	if cfg.TraceIDKey == "" {
		cfg.TraceIDKey = TraceIDKeyDefault
	}
	if cfg.TraceIDHeader == "" {
		cfg.TraceIDHeader = TraceIDHeaderDefault
	}
	if cfg.Generator == nil {
		cfg.Generator = uuid.NewString
	}

	return func(c *gin.Context) {
		traceID := c.GetHeader(cfg.TraceIDHeader)
		if traceID == "" {
			traceID = cfg.Generator()
		}

		ctx := context.WithValue(c.Request.Context(), cfg.TraceIDKey, traceID) //nolint:staticcheck
		c.Request = c.Request.WithContext(ctx)
		c.Set(cfg.TraceIDKey, traceID)

		if cfg.EnableResponseHeader {
			c.Writer.Header().Set(cfg.TraceIDHeader, traceID)
		}

		c.Next()
	}
}

// GetTraceID reads the trace id from the gin context.
func GetTraceID(c *gin.Context) string {
	traceID, exists := c.Get(TraceIDKeyDefault)
	if !exists {
		return ""
	}
	id, _ := traceID.(string)
	return id
}
