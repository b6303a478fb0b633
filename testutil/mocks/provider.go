// Package mocks 提供图像生成 Provider 的测试模拟实现。
//
// 支持固定响应、按次错误注入与调用记录场景。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/imageflow/image"
	"github.com/BaSui01/imageflow/types"
)

// Compile-time interface assertion.
var _ image.Provider = (*MockProvider)(nil)

// MockProvider 是 image.Provider 的模拟实现。
type MockProvider struct {
	mu sync.Mutex

	name string
	caps image.Capabilities

	// 响应配置
	response *image.GenerateResponse
	// errs 按调用顺序注入的错误；耗尽后返回 response
	errs   []error
	delay  time.Duration
	health image.ProviderHealth

	// 校验配置
	validation image.ValidationResult

	// 调用记录
	generateCalls int
	healthCalls   int
	disposeCalls  int
	lastRequest   *image.GenerateRequest
}

// NewMockProvider 创建默认成功的模拟 Provider。
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name: name,
		caps: image.Capabilities{
			MaxPromptLength: 4000,
			MinWidth:        256,
			MaxWidth:        2048,
			MinHeight:       256,
			MaxHeight:       2048,
		},
		validation: image.ValidationResult{Valid: true},
		health:     image.ProviderHealth{State: image.HealthUp},
		response: &image.GenerateResponse{
			Provider: name,
			Model:    "mock-model",
			Assets: []image.ImageAsset{{
				URL:       "https://mock.example.com/" + name + ".png",
				Width:     1024,
				Height:    1024,
				CreatedAt: time.Now(),
			}},
			GeneratedAt: time.Now(),
			LatencyMs:   100,
		},
	}
}

// WithResponse 设置固定响应。
func (m *MockProvider) WithResponse(resp *image.GenerateResponse) *MockProvider {
	m.response = resp
	return m
}

// WithLatency 设置响应中记录的延迟毫秒数。
func (m *MockProvider) WithLatency(ms int64) *MockProvider {
	m.response.LatencyMs = ms
	return m
}

// WithErrors 注入按调用顺序返回的错误，耗尽后恢复成功。
func (m *MockProvider) WithErrors(errs ...error) *MockProvider {
	m.errs = errs
	return m
}

// FailAlways 让 Generate 永远返回同一个错误。
func (m *MockProvider) FailAlways(err error) *MockProvider {
	m.errs = nil
	for i := 0; i < 1024; i++ {
		m.errs = append(m.errs, err)
	}
	return m
}

// WithDelay 为每次 Generate 增加真实耗时。
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.delay = d
	return m
}

// WithValidation 设置 ValidateRequest 的固定结果。
func (m *MockProvider) WithValidation(res image.ValidationResult) *MockProvider {
	m.validation = res
	return m
}

// WithHealth 设置 HealthCheck 的固定结果。
func (m *MockProvider) WithHealth(h image.ProviderHealth) *MockProvider {
	m.health = h
	return m
}

// Init 实现 image.Provider。
func (m *MockProvider) Init(image.ProviderConfig) error { return nil }

// ValidateRequest 实现 image.Provider。
func (m *MockProvider) ValidateRequest(req *image.GenerateRequest) image.ValidationResult {
	return m.validation
}

// Generate 实现 image.Provider。
func (m *MockProvider) Generate(ctx context.Context, req *image.GenerateRequest) (*image.GenerateResponse, error) {
	m.mu.Lock()
	m.generateCalls++
	m.lastRequest = req
	var err error
	if len(m.errs) > 0 {
		err = m.errs[0]
		m.errs = m.errs[1:]
	}
	delay := m.delay
	resp := m.response
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, types.NewError(types.CodeUpstreamTimeout, types.KindTimeout, "mock generate canceled").
				WithRetryable(true).
				WithProvider(m.name).
				WithCause(ctx.Err())
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}
	return resp, nil
}

// HealthCheck 实现 image.Provider。
func (m *MockProvider) HealthCheck(context.Context) image.ProviderHealth {
	m.mu.Lock()
	m.healthCalls++
	h := m.health
	m.mu.Unlock()
	return h
}

// Name 实现 image.Provider。
func (m *MockProvider) Name() string { return m.name }

// Capabilities 实现 image.Provider。
func (m *MockProvider) Capabilities() image.Capabilities { return m.caps }

// Dispose 实现 image.Provider。
func (m *MockProvider) Dispose() {
	m.mu.Lock()
	m.disposeCalls++
	m.mu.Unlock()
}

// GenerateCalls 返回 Generate 被调用的次数。
func (m *MockProvider) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls
}

// HealthCalls 返回 HealthCheck 被调用的次数。
func (m *MockProvider) HealthCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthCalls
}

// DisposeCalls 返回 Dispose 被调用的次数。
func (m *MockProvider) DisposeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposeCalls
}

// LastRequest 返回最近一次 Generate 收到的请求。
func (m *MockProvider) LastRequest() *image.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}
