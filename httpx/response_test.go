package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-appgen/errcode"
)

var errTestTooBusy = errcode.Register(errcode.New(
	99, 1001, "httpxtest", "error.httpxtest.too_busy",
	"too busy", http.StatusTooManyRequests))

func performRequest(t *testing.T, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/t", handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestOkJson(t *testing.T) {
	w := performRequest(t, func(c *gin.Context) {
		OkJson(c, map[string]any{"answer": "hi"})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "success", resp.Msg)
}

func TestHandleErrorLayeredError(t *testing.T) {
	w := performRequest(t, func(c *gin.Context) {
		HandleError(c, errTestTooBusy.WithData("tenant_id", "t-1"))
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, errTestTooBusy.Code(), resp.Code)
	assert.Equal(t, "too busy", resp.Msg)
}

func TestHandleErrorWrappedLayeredError(t *testing.T) {
	w := performRequest(t, func(c *gin.Context) {
		HandleError(c, errors.Join(errors.New("outer"), errTestTooBusy))
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestHandleErrorUnknownErrorIs500(t *testing.T) {
	w := performRequest(t, func(c *gin.Context) {
		HandleError(c, errors.New("pq: connection refused"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, 500, resp.Code)
	assert.NotContains(t, resp.Msg, "pq:", "internal details must not leak")
}

func TestHandleErrorNilIsNoop(t *testing.T) {
	w := performRequest(t, func(c *gin.Context) {
		HandleError(c, nil)
		c.Status(http.StatusNoContent)
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNoRouteHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.NoRoute(NoRouteHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseBindsBodyAndQuery(t *testing.T) {
	type req struct {
		AppID     string `uri:"app_id"`
		Streaming bool   `form:"streaming"`
		Query     string `json:"query"`
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	var got req
	router.POST("/apps/:app_id/run", func(c *gin.Context) {
		require.NoError(t, Parse(c, &got))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"query":"hello"}`)
	httpReq := httptest.NewRequest(http.MethodPost, "/apps/app-1/run?streaming=true", body)
	httpReq.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, httpReq)

	assert.Equal(t, "app-1", got.AppID)
	assert.True(t, got.Streaming)
	assert.Equal(t, "hello", got.Query)
}
