package image

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BaSui01/imageflow/types"
)

// mapHTTPError 把后端 HTTP 状态码分类为规范化错误信封。
// 分类规则：429 → rate_limit（可重试）、503/模型冷启动 → provider
// （可重试）、4xx 参数错误 → validation（不可重试）、其余 5xx →
// provider（可重试）。
func mapHTTPError(status int, body string, provider string) *types.Error {
	switch status {
	case http.StatusTooManyRequests:
		return types.NewError(types.CodeRateLimited, types.KindRateLimit, body).
			WithRetryable(true).
			WithProvider(provider).
			WithDetail("status", status)
	case http.StatusServiceUnavailable:
		return types.NewError(types.CodeUpstreamError, types.KindProvider, body).
			WithRetryable(true).
			WithProvider(provider).
			WithDetail("status", status)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		// 部分托管后端在模型加载期间也返回 4xx + "loading"
		if strings.Contains(strings.ToLower(body), "loading") {
			return types.NewError(types.CodeUpstreamError, types.KindProvider, body).
				WithRetryable(true).
				WithProvider(provider).
				WithDetail("status", status)
		}
		return types.NewError(types.CodeInvalidRequest, types.KindValidation, body).
			WithProvider(provider).
			WithDetail("status", status)
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewError(types.CodeProviderUnavailable, types.KindProvider, body).
			WithProvider(provider).
			WithDetail("status", status)
	case http.StatusGatewayTimeout:
		return types.NewError(types.CodeUpstreamTimeout, types.KindTimeout, body).
			WithRetryable(true).
			WithProvider(provider).
			WithDetail("status", status)
	default:
		return types.NewError(types.CodeUpstreamError, types.KindProvider, body).
			WithRetryable(status >= 500).
			WithProvider(provider).
			WithDetail("status", status)
	}
}

// mapTransportError 把 http.Client 层错误分类：超时 → timeout，
// 其余网络失败 → transport，均可重试。
func mapTransportError(err error, provider string) *types.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.CodeUpstreamTimeout, types.KindTimeout, "request deadline exceeded").
			WithRetryable(true).
			WithProvider(provider).
			WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return types.NewError(types.CodeInternalError, types.KindInternal, "request canceled").
			WithProvider(provider).
			WithCause(err)
	}
	return types.NewError(types.CodeTransportError, types.KindTransport, err.Error()).
		WithRetryable(true).
		WithProvider(provider).
		WithCause(err)
}
