package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceIDGeneratesWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TraceID(DefaultTraceConfig()))

	var seen string
	router.GET("/t", func(c *gin.Context) {
		seen = GetTraceID(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(TraceIDHeaderDefault), "trace id echoed on the response")
}

func TestTraceIDKeepsIncomingID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TraceID(DefaultTraceConfig()))

	var fromCtx string
	router.GET("/t", func(c *gin.Context) {
		fromCtx, _ = c.Request.Context().Value(TraceIDKeyDefault).(string)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set(TraceIDHeaderDefault, "trace-abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "trace-abc", fromCtx, "incoming trace id propagates into the request context")
	assert.Equal(t, "trace-abc", w.Header().Get(TraceIDHeaderDefault))
}

func TestRequestLogSkipsConfiguredPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogWithConfig(RequestLogConfig{SkipPaths: []string{"/health"}}))

	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/t", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	for _, path := range []string{"/health", "/t"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.NotEqual(t, http.StatusInternalServerError, w.Code)
	}
}
