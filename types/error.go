package types

import "fmt"

// ErrorKind classifies a failure for retry and reporting decisions.
type ErrorKind string

const (
	// KindValidation 请求参数非法，永不重试
	KindValidation ErrorKind = "validation"
	// KindRateLimit 上游限流（429），退避后重试
	KindRateLimit ErrorKind = "rate_limit"
	// KindTimeout 调用超时，退避后重试
	KindTimeout ErrorKind = "timeout"
	// KindProvider 后端瞬时故障（503/模型冷启动），退避后重试
	KindProvider ErrorKind = "provider"
	// KindTransport 网络层失败，退避后重试
	KindTransport ErrorKind = "transport"
	// KindInternal 程序/配置错误，永不重试
	KindInternal ErrorKind = "internal"
)

// Error codes
const (
	CodeInvalidRequest      = "IMG_INVALID_REQUEST"
	CodeRateLimited         = "IMG_RATE_LIMITED"
	CodeUpstreamTimeout     = "IMG_UPSTREAM_TIMEOUT"
	CodeUpstreamError       = "IMG_UPSTREAM_ERROR"
	CodeTransportError      = "IMG_TRANSPORT_ERROR"
	CodeProviderUnavailable = "IMG_PROVIDER_UNAVAILABLE"
	CodeAllProvidersFailed  = "IMG_ALL_PROVIDERS_FAILED"
	CodeInternalError       = "IMG_INTERNAL_ERROR"
)

// Error represents a structured error with code, kind, and metadata.
// 本子系统内所有跨组件边界的失败都先规范化为该形态。
type Error struct {
	Code      string         `json:"code"`
	Kind      ErrorKind      `json:"kind"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Provider  string         `json:"provider,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code, kind and message.
func NewError(code string, kind ErrorKind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the originating provider id.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithDetail attaches a structured detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// IsRetryable checks if an error is retryable.
// 重试决策只看该字段，不检查 Kind（Kind 仅用于上报分类）。
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorKind extracts the error kind from an error.
func GetErrorKind(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}

// AsError normalizes any error into a *Error envelope.
// Unknown errors become kind=internal and are never retried.
func AsError(err error, provider string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		if e.Provider == "" {
			e.Provider = provider
		}
		return e
	}
	return &Error{
		Code:     CodeInternalError,
		Kind:     KindInternal,
		Message:  err.Error(),
		Provider: provider,
		Cause:    err,
	}
}
