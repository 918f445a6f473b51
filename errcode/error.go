// Package errcode provides hierarchical error codes.
// Error code format: MMBBBB (MM = module code, BBBB = business code).
package errcode

import (
	"fmt"
	"net/http"
)

// LayeredError is a coded business error.
// Supports error chaining, dynamic messages, structured context data
// and HTTP status code mapping.
type LayeredError struct {
	module     string
	code       int
	msgKey     string
	msg        string
	httpStatus int
	data       map[string]interface{}
	cause      error
}

// New creates a layered error.
// moduleCode: module code (10-99)
// businessCode: business code (0001-9999)
// module: module name (appgen, ratelimit, ...)
// msgKey: stable message key
// msg: default message
// httpStatus: HTTP status code (optional, defaults to 200)
func New(moduleCode, businessCode int, module, msgKey, msg string, httpStatus ...int) *LayeredError {
	code := moduleCode*10000 + businessCode
	status := http.StatusOK
	if len(httpStatus) > 0 {
		status = httpStatus[0]
	}
	return &LayeredError{
		module:     module,
		code:       code,
		msgKey:     msgKey,
		msg:        msg,
		httpStatus: status,
		data:       make(map[string]interface{}),
	}
}

func (e *LayeredError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Code returns the full error code (MMBBBB).
func (e *LayeredError) Code() int {
	return e.code
}

// Module returns the module name.
func (e *LayeredError) Module() string {
	return e.module
}

// MsgKey returns the stable message key.
func (e *LayeredError) MsgKey() string {
	return e.msgKey
}

// Message returns the current message.
func (e *LayeredError) Message() string {
	return e.msg
}

// HTTPStatus returns the mapped HTTP status code.
func (e *LayeredError) HTTPStatus() int {
	return e.httpStatus
}

// Data returns the structured context data.
func (e *LayeredError) Data() map[string]interface{} {
	return e.data
}

// Cause returns the original error, if any.
func (e *LayeredError) Cause() error {
	return e.cause
}

// Unwrap supports Go 1.13+ error chains.
func (e *LayeredError) Unwrap() error {
	return e.cause
}

// Is matches two layered errors by code, so that
// errors.Is(err, ErrSomething) works across WithMsg/WithData clones.
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	return ok && t.code == e.code
}

// WithMsg replaces the message (returns a clone, the original is unchanged).
func (e *LayeredError) WithMsg(msg string) *LayeredError {
	clone := *e
	clone.msg = msg
	return &clone
}

// WithMsgf replaces the message with a formatted one (returns a clone).
func (e *LayeredError) WithMsgf(format string, args ...interface{}) *LayeredError {
	clone := *e
	clone.msg = fmt.Sprintf(format, args...)
	return &clone
}

// WithData adds a single context entry (returns a clone).
func (e *LayeredError) WithData(key string, value interface{}) *LayeredError {
	clone := *e
	clone.data = e.cloneData()
	clone.data[key] = value
	return &clone
}

// WithFields adds multiple context entries (returns a clone).
func (e *LayeredError) WithFields(fields map[string]interface{}) *LayeredError {
	clone := *e
	clone.data = e.cloneData()
	for k, v := range fields {
		clone.data[k] = v
	}
	return &clone
}

// WithCause attaches the original error (returns a clone).
func (e *LayeredError) WithCause(cause error) *LayeredError {
	clone := *e
	clone.cause = cause
	return &clone
}

func (e *LayeredError) cloneData() map[string]interface{} {
	data := make(map[string]interface{}, len(e.data)+1)
	for k, v := range e.data {
		data[k] = v
	}
	return data
}
