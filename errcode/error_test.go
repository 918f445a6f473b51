package errcode

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CodeComposition(t *testing.T) {
	err := New(20, 1001, "appgen", "error.appgen.unsupported_mode", "unsupported mode", http.StatusBadRequest)

	assert.Equal(t, 201001, err.Code())
	assert.Equal(t, "appgen", err.Module())
	assert.Equal(t, "error.appgen.unsupported_mode", err.MsgKey())
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Equal(t, "unsupported mode", err.Error())
}

func TestNew_DefaultHTTPStatus(t *testing.T) {
	err := New(20, 1002, "appgen", "error.appgen.generic", "generic")
	assert.Equal(t, http.StatusOK, err.HTTPStatus())
}

func TestWithMsgf_ReturnsClone(t *testing.T) {
	base := New(21, 1001, "ratelimit", "error.ratelimit.exceeded", "limit exceeded", http.StatusTooManyRequests)
	clone := base.WithMsgf("limit exceeded for tenant %s", "t-1")

	assert.Equal(t, "limit exceeded", base.Message())
	assert.Equal(t, "limit exceeded for tenant t-1", clone.Message())
	assert.Equal(t, base.Code(), clone.Code())
}

func TestWithData_DoesNotMutateOriginal(t *testing.T) {
	base := New(21, 1002, "ratelimit", "error.ratelimit.concurrency", "too many active requests", http.StatusTooManyRequests)
	clone := base.WithData("app_id", "app-1").WithData("limit", 5)

	assert.Empty(t, base.Data())
	assert.Equal(t, "app-1", clone.Data()["app_id"])
	assert.Equal(t, 5, clone.Data()["limit"])
}

func TestIs_MatchesByCodeAcrossClones(t *testing.T) {
	base := New(21, 1003, "ratelimit", "error.ratelimit.upstream", "upstream throttled", http.StatusTooManyRequests)
	clone := base.WithMsg("provider said no").WithData("provider", "openai")

	assert.True(t, errors.Is(clone, base))
	other := New(21, 1004, "ratelimit", "error.ratelimit.other", "other")
	assert.False(t, errors.Is(clone, other))
}

func TestWithCause_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := New(20, 1005, "appgen", "error.appgen.dispatch", "dispatch failed").WithCause(cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRegister_ConflictPanics(t *testing.T) {
	r := &Registry{codes: make(map[int]string)}

	first := New(30, 1, "demo", "error.demo.a", "a")
	r.Register(first)
	// idempotent re-registration
	r.Register(first)

	assert.Panics(t, func() {
		r.Register(New(30, 1, "demo", "error.demo.b", "b"))
	})
	assert.Len(t, r.Registered(), 1)
}
