package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorAllHealthy(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register("store", func(ctx context.Context) error { return nil })
	agg.Register("database", func(ctx context.Context) error { return nil })

	resp := agg.Check(context.Background())
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.True(t, resp.IsHealthy())
	assert.Len(t, resp.Checks, 2)
}

func TestAggregatorDegradedAndUnhealthy(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register("store", func(ctx context.Context) error { return nil })
	agg.Register("database", func(ctx context.Context) error { return errors.New("connection refused") })

	resp := agg.Check(context.Background())
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, StatusUnhealthy, resp.Checks["database"].Status)
	assert.Contains(t, resp.Checks["database"].Error, "connection refused")

	agg.Register("store", func(ctx context.Context) error { return errors.New("down") })
	resp = agg.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestAggregatorNoChecksIsHealthy(t *testing.T) {
	resp := NewAggregator(0).Check(context.Background())
	assert.Equal(t, StatusHealthy, resp.Status)
}

func TestAggregatorCheckTimeout(t *testing.T) {
	agg := NewAggregator(20 * time.Millisecond)
	agg.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	resp := agg.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestHandlerStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	agg := NewAggregator(time.Second)
	router := gin.New()
	router.GET("/health", agg.Handler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	agg.Register("store", func(ctx context.Context) error { return errors.New("down") })
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
