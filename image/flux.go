package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

var _ Provider = (*FluxProvider)(nil)

// FluxProvider 使用 Black Forest Labs Flux 执行图像生成。
// API Docs: https://docs.bfl.ai/quick_start/generating_images
type FluxProvider struct {
	cfg          ProviderConfig
	client       *http.Client
	logger       *zap.Logger
	pollInterval time.Duration
}

// NewFluxProvider 创建新的 Flux 图像 Provider。
func NewFluxProvider(cfg ProviderConfig, logger *zap.Logger) *FluxProvider {
	p := &FluxProvider{logger: logger, pollInterval: 2 * time.Second}
	_ = p.Init(cfg)
	return p
}

// Init 实现 Provider.Init。
func (p *FluxProvider) Init(cfg ProviderConfig) error {
	if cfg.ProviderID == "" {
		cfg.ProviderID = "flux"
	}
	if cfg.BaseURL == "" {
		// 全球主端点；区域端点为 api.eu.bfl.ai / api.us.bfl.ai
		cfg.BaseURL = "https://api.bfl.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "flux-2-pro"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	p.cfg = cfg
	p.client = &http.Client{}
	if p.pollInterval == 0 {
		p.pollInterval = 2 * time.Second
	}
	return nil
}

func (p *FluxProvider) Name() string { return p.cfg.ProviderID }

// Capabilities 返回 Flux 的能力边界。
func (p *FluxProvider) Capabilities() Capabilities {
	return Capabilities{
		MaxPromptLength: 10000,
		MinWidth:        256,
		MaxWidth:        1536,
		MinHeight:       256,
		MaxHeight:       1536,
		MaxSteps:        50,
		MaxCFGScale:     10,
	}
}

// ValidateRequest 实现 Provider.ValidateRequest。
func (p *FluxProvider) ValidateRequest(req *GenerateRequest) ValidationResult {
	return p.Capabilities().Validate(req)
}

type fluxRequest struct {
	Prompt       string  `json:"prompt"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Steps        int     `json:"steps,omitempty"`
	Guidance     float64 `json:"guidance,omitempty"`
	Seed         int64   `json:"seed,omitempty"`
	OutputFormat string  `json:"output_format,omitempty"`
}

type fluxResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PollingURL string `json:"polling_url,omitempty"` // 轮询必须使用该 URL
	Result     struct {
		Sample string `json:"sample"` // 签名 URL，10 分钟内有效
	} `json:"result,omitempty"`
}

// Generate 提交生成任务并轮询结果。
// Endpoint: POST /v1/{model}，鉴权用 x-key 头。
func (p *FluxProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	body := fluxRequest{
		Prompt:       req.Prompt,
		Width:        req.Width,
		Height:       req.Height,
		OutputFormat: "jpeg",
	}
	if req.Steps > 0 {
		body.Steps = req.Steps
	}
	if req.CFGScale > 0 {
		body.Guidance = req.CFGScale
	}
	if req.Seed > 0 {
		body.Seed = req.Seed
	}

	start := time.Now()

	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1/%s", strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.CodeInternalError, types.KindInternal, "failed to create request").
			WithProvider(p.Name()).
			WithCause(err)
	}
	httpReq.Header.Set("x-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(err, p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, mapHTTPError(resp.StatusCode, string(errBody), p.Name())
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mapTransportError(err, p.Name())
	}

	var fResp fluxResponse
	if err := json.Unmarshal(raw, &fResp); err != nil {
		return nil, types.NewError(types.CodeUpstreamError, types.KindProvider, "failed to decode flux response").
			WithRetryable(true).
			WithProvider(p.Name()).
			WithCause(err)
	}

	// 全球端点是异步的：用 polling_url 轮询直到 Ready
	if fResp.Status != "Ready" {
		pollingURL := fResp.PollingURL
		if pollingURL == "" {
			pollingURL = fmt.Sprintf("%s/v1/get_result?id=%s", strings.TrimRight(p.cfg.BaseURL, "/"), fResp.ID)
		}
		result, err := p.pollResult(ctx, pollingURL)
		if err != nil {
			return nil, err
		}
		fResp = *result
	}

	latency := time.Since(start)
	now := time.Now()

	p.logger.Debug("flux generation finished",
		zap.String("provider", p.Name()),
		zap.String("task_id", fResp.ID),
		zap.Duration("latency", latency),
	)

	return &GenerateResponse{
		Provider: p.Name(),
		Model:    p.cfg.Model,
		Assets: []ImageAsset{{
			URL:         fResp.Result.Sample,
			ContentType: "image/jpeg",
			Width:       req.Width,
			Height:      req.Height,
			CreatedAt:   now,
			Meta:        map[string]any{"task_id": fResp.ID},
		}},
		AppliedParams: map[string]any{
			"width":    body.Width,
			"height":   body.Height,
			"steps":    body.Steps,
			"guidance": body.Guidance,
		},
		GeneratedAt: now,
		LatencyMs:   latency.Milliseconds(),
		Raw:         raw,
	}, nil
}

// pollResult 轮询异步生成结果。结果中的签名 URL 仅 10 分钟有效。
func (p *FluxProvider) pollResult(ctx context.Context, pollingURL string) (*fluxResponse, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, mapTransportError(ctx.Err(), p.Name())
		case <-time.After(p.pollInterval):
		}

		httpReq, err := http.NewRequestWithContext(ctx, "GET", pollingURL, nil)
		if err != nil {
			return nil, types.NewError(types.CodeInternalError, types.KindInternal, "failed to create poll request").
				WithProvider(p.Name()).
				WithCause(err)
		}
		httpReq.Header.Set("x-key", p.cfg.APIKey)
		httpReq.Header.Set("accept", "application/json")

		resp, err := p.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, mapTransportError(ctx.Err(), p.Name())
			}
			// 单次轮询失败继续重试，超时由 ctx 兜底
			continue
		}

		var fResp fluxResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&fResp)
		resp.Body.Close()
		if decodeErr != nil {
			continue
		}

		switch fResp.Status {
		case "Ready":
			return &fResp, nil
		case "Error", "Failed":
			return nil, types.NewError(types.CodeUpstreamError, types.KindProvider, "flux generation failed").
				WithRetryable(true).
				WithProvider(p.Name())
		}
		// Pending / Processing 继续轮询
	}
}

// HealthCheck 探测根端点。不可达时返回 DOWN，不抛错。
func (p *FluxProvider) HealthCheck(ctx context.Context) ProviderHealth {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, "GET", strings.TrimRight(p.cfg.BaseURL, "/")+"/", nil)
	if err != nil {
		return ProviderHealth{State: HealthDown, Reason: err.Error(), CheckedAt: start}
	}
	httpReq.Header.Set("x-key", p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return ProviderHealth{State: HealthDown, Latency: latency, Reason: err.Error(), CheckedAt: time.Now()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return ProviderHealth{
			State:     HealthDown,
			Latency:   latency,
			Reason:    fmt.Sprintf("status=%d", resp.StatusCode),
			CheckedAt: time.Now(),
		}
	}
	return ProviderHealth{State: HealthUp, Latency: latency, CheckedAt: time.Now()}
}

// Dispose 释放空闲连接，幂等。
func (p *FluxProvider) Dispose() {
	if p.client != nil {
		p.client.CloseIdleConnections()
	}
}
