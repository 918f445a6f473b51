// Package httpx provides unified handling of HTTP requests/responses.
package httpx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-appgen/errcode"
	"github.com/KOMKZ/go-appgen/logger"
)

// Response is the unified response envelope.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

// OkJson writes a successful response.
func OkJson(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// BadRequestJson writes a 400 error response.
func BadRequestJson(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{
		Code: 400,
		Msg:  err.Error(),
	})
}

// NotFoundJson writes a 404 error response.
func NotFoundJson(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{
		Code: 404,
		Msg:  msg,
	})
}

// InternalErrorJson writes a 500 error response.
func InternalErrorJson(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{
		Code: 500,
		Msg:  msg,
	})
}

// NoRouteHandler returns a handler for engine.NoRoute() that keeps 404s
// in the unified response format.
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code: 404,
			Msg:  "route not found: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// NoMethodHandler returns a handler for engine.NoMethod().
func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, Response{
			Code: 405,
			Msg:  "method not allowed: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// HandleError maps an error to the response format. LayeredError
// carries its own HTTP status, code and optional data; anything else is
// a 500 so internal details stay out of client responses.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	ctx := c.Request.Context()
	log := logger.GetLogger("httpx")

	var layeredErr *errcode.LayeredError
	if errors.As(err, &layeredErr) {
		fields := []zap.Field{
			zap.Int("error_code", layeredErr.Code()),
			zap.String("error_msg", layeredErr.Message()),
		}
		if layeredErr.HTTPStatus() >= http.StatusInternalServerError {
			log.ErrorCtx(ctx, "request failed", append(fields, zap.Error(err))...)
		} else {
			log.WarnCtx(ctx, "request rejected", fields...)
		}

		c.JSON(layeredErr.HTTPStatus(), Response{
			Code: layeredErr.Code(),
			Msg:  layeredErr.Message(),
			Data: layeredErr.Data(),
		})
		return
	}

	log.ErrorCtx(ctx, "unhandled error", zap.Error(err))
	InternalErrorJson(c, "internal server error")
}
