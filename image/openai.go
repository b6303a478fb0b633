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

var _ Provider = (*OpenAIProvider)(nil)

// OpenAIProvider 使用 OpenAI DALL-E 执行图像生成。
type OpenAIProvider struct {
	cfg    ProviderConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIProvider 创建新的 OpenAI 图像 Provider。
func NewOpenAIProvider(cfg ProviderConfig, logger *zap.Logger) *OpenAIProvider {
	p := &OpenAIProvider{logger: logger}
	_ = p.Init(cfg)
	return p
}

// Init 实现 Provider.Init。
func (p *OpenAIProvider) Init(cfg ProviderConfig) error {
	if cfg.ProviderID == "" {
		cfg.ProviderID = "openai-image"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "dall-e-3"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	p.cfg = cfg
	p.client = &http.Client{}
	return nil
}

func (p *OpenAIProvider) Name() string { return p.cfg.ProviderID }

// Capabilities 返回 DALL-E 3 的能力边界。
func (p *OpenAIProvider) Capabilities() Capabilities {
	return Capabilities{
		MaxPromptLength: 4000,
		MinWidth:        1024,
		MaxWidth:        1792,
		MinHeight:       1024,
		MaxHeight:       1792,
	}
}

// ValidateRequest 实现 Provider.ValidateRequest。
func (p *OpenAIProvider) ValidateRequest(req *GenerateRequest) ValidationResult {
	return p.Capabilities().Validate(req)
}

type dalleRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type dalleResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url,omitempty"`
		B64JSON       string `json:"b64_json,omitempty"`
		RevisedPrompt string `json:"revised_prompt,omitempty"`
	} `json:"data"`
}

// Generate 从文本提示生成图像。
func (p *OpenAIProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	body := dalleRequest{
		Model:  p.cfg.Model,
		Prompt: req.Prompt,
		N:      1,
		Size:   req.Size(),
	}
	if req.Quality != "" {
		body.Quality = req.Quality
	}
	if req.Style != "" {
		body.Style = req.Style
	}

	start := time.Now()

	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/images/generations",
		bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.CodeInternalError, types.KindInternal, "failed to create request").
			WithProvider(p.Name()).
			WithCause(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

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

	var dResp dalleResponse
	if err := json.Unmarshal(raw, &dResp); err != nil {
		return nil, types.NewError(types.CodeUpstreamError, types.KindProvider, "failed to decode dalle response").
			WithRetryable(true).
			WithProvider(p.Name()).
			WithCause(err)
	}

	latency := time.Since(start)
	now := time.Now()

	assets := make([]ImageAsset, len(dResp.Data))
	for i, d := range dResp.Data {
		assets[i] = ImageAsset{
			URL:         d.URL,
			B64JSON:     d.B64JSON,
			ContentType: "image/png",
			Width:       req.Width,
			Height:      req.Height,
			CreatedAt:   now,
		}
		if d.RevisedPrompt != "" {
			assets[i].Meta = map[string]any{"revised_prompt": d.RevisedPrompt}
		}
	}

	p.logger.Debug("dalle generation finished",
		zap.String("provider", p.Name()),
		zap.Int("assets", len(assets)),
		zap.Duration("latency", latency),
	)

	return &GenerateResponse{
		Provider: p.Name(),
		Model:    p.cfg.Model,
		Assets:   assets,
		AppliedParams: map[string]any{
			"size":    body.Size,
			"quality": body.Quality,
			"style":   body.Style,
			"n":       body.N,
		},
		GeneratedAt: now,
		LatencyMs:   latency.Milliseconds(),
		Raw:         raw,
	}, nil
}

// HealthCheck 探测 /v1/models。不可达时返回 DOWN，不抛错。
func (p *OpenAIProvider) HealthCheck(ctx context.Context) ProviderHealth {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/models", nil)
	if err != nil {
		return ProviderHealth{State: HealthDown, Reason: err.Error(), CheckedAt: start}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

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
func (p *OpenAIProvider) Dispose() {
	if p.client != nil {
		p.client.CloseIdleConnections()
	}
}
