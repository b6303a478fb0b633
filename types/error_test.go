package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError(CodeRateLimited, KindRateLimit, "too many requests")
	assert.Equal(t, "[IMG_RATE_LIMITED] too many requests", err.Error())

	cause := errors.New("connection reset")
	err = NewError(CodeTransportError, KindTransport, "request failed").WithCause(cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_Builders(t *testing.T) {
	err := NewError(CodeUpstreamError, KindProvider, "model loading").
		WithRetryable(true).
		WithProvider("flux").
		WithDetail("status", 503)

	assert.True(t, err.Retryable)
	assert.Equal(t, "flux", err.Provider)
	assert.Equal(t, 503, err.Details["status"])
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(NewError(CodeInvalidRequest, KindValidation, "bad prompt")))
	assert.True(t, IsRetryable(NewError(CodeRateLimited, KindRateLimit, "429").WithRetryable(true)))
}

func TestGetErrorKind(t *testing.T) {
	assert.Equal(t, KindTimeout, GetErrorKind(NewError(CodeUpstreamTimeout, KindTimeout, "deadline")))
	assert.Equal(t, ErrorKind(""), GetErrorKind(errors.New("plain")))
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil, "openai-image"))

	// 已规范化的错误保留原有字段，仅补齐 provider
	orig := NewError(CodeRateLimited, KindRateLimit, "429").WithRetryable(true)
	wrapped := AsError(orig, "openai-image")
	assert.Same(t, orig, wrapped)
	assert.Equal(t, "openai-image", wrapped.Provider)

	// 未知错误归为 internal 且不可重试
	plain := fmt.Errorf("nil pointer")
	env := AsError(plain, "flux")
	assert.Equal(t, KindInternal, env.Kind)
	assert.False(t, env.Retryable)
	assert.Equal(t, "flux", env.Provider)
	assert.Equal(t, plain, errors.Unwrap(env))
}
