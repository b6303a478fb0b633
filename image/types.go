package image

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GenerateRequest 代表一次图像生成请求。
// 值对象：由调用方构造，提交后不再修改。
type GenerateRequest struct {
	Prompt         string            `json:"prompt"`
	NegativePrompt string            `json:"negative_prompt,omitempty"`
	Width          int               `json:"width,omitempty"`
	Height         int               `json:"height,omitempty"`
	Quality        string            `json:"quality,omitempty"` // standard, hd
	Style          string            `json:"style,omitempty"`   // vivid, natural
	Seed           int64             `json:"seed,omitempty"`
	Steps          int               `json:"steps,omitempty"`     // For SD/Flux
	CFGScale       float64           `json:"cfg_scale,omitempty"` // Guidance scale
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Size 返回 "WxH" 形式的尺寸串。
func (r *GenerateRequest) Size() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ImageAsset 代表一张生成出的图像。
type ImageAsset struct {
	URL         string         `json:"url,omitempty"`
	B64JSON     string         `json:"b64_json,omitempty"`
	ContentType string         `json:"content_type,omitempty"`
	Width       int            `json:"width,omitempty"`
	Height      int            `json:"height,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Meta        map[string]any `json:"meta,omitempty"` // 不透明的 provider 元数据
}

// GenerateResponse 代表一次成功的生成调用结果。
// 每次成功调用生成一次，之后不再修改。
type GenerateResponse struct {
	Provider      string          `json:"provider"`
	Model         string          `json:"model"`
	Assets        []ImageAsset    `json:"assets"`
	AppliedParams map[string]any  `json:"applied_params,omitempty"` // 实际生效的生成参数
	GeneratedAt   time.Time       `json:"generated_at"`
	LatencyMs     int64           `json:"latency_ms"`
	Raw           json.RawMessage `json:"raw,omitempty"` // 调试用的原始上游载荷
}

// ValidationIssue 描述一条约束违规。
type ValidationIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult 聚合全部违规项（不是只报第一条）。
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// HealthState Provider 健康状态。
type HealthState string

const (
	HealthUp   HealthState = "UP"
	HealthDown HealthState = "DOWN"
)

// ProviderHealth 健康探测结果。探测失败用 DOWN + Reason 表达，不抛错。
type ProviderHealth struct {
	State     HealthState   `json:"state"`
	Latency   time.Duration `json:"latency"`
	Reason    string        `json:"reason,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Capabilities 声明后端的能力边界，初始化后不可变。
type Capabilities struct {
	MaxPromptLength int     `json:"max_prompt_length"`
	MinWidth        int     `json:"min_width"`
	MaxWidth        int     `json:"max_width"`
	MinHeight       int     `json:"min_height"`
	MaxHeight       int     `json:"max_height"`
	MaxSteps        int     `json:"max_steps,omitempty"`
	MaxCFGScale     float64 `json:"max_cfg_scale,omitempty"`
}

// Validate 按能力边界枚举请求的所有违规项。纯函数，永不抛错。
func (c Capabilities) Validate(req *GenerateRequest) ValidationResult {
	var issues []ValidationIssue

	if req.Prompt == "" {
		issues = append(issues, ValidationIssue{Path: "prompt", Message: "prompt is required"})
	} else if c.MaxPromptLength > 0 && len(req.Prompt) > c.MaxPromptLength {
		issues = append(issues, ValidationIssue{
			Path:    "prompt",
			Message: fmt.Sprintf("prompt length %d exceeds max %d", len(req.Prompt), c.MaxPromptLength),
		})
	}
	if req.Width < c.MinWidth || (c.MaxWidth > 0 && req.Width > c.MaxWidth) {
		issues = append(issues, ValidationIssue{
			Path:    "width",
			Message: fmt.Sprintf("width %d outside [%d, %d]", req.Width, c.MinWidth, c.MaxWidth),
		})
	}
	if req.Height < c.MinHeight || (c.MaxHeight > 0 && req.Height > c.MaxHeight) {
		issues = append(issues, ValidationIssue{
			Path:    "height",
			Message: fmt.Sprintf("height %d outside [%d, %d]", req.Height, c.MinHeight, c.MaxHeight),
		})
	}
	if c.MaxSteps > 0 && req.Steps > c.MaxSteps {
		issues = append(issues, ValidationIssue{
			Path:    "steps",
			Message: fmt.Sprintf("steps %d exceeds max %d", req.Steps, c.MaxSteps),
		})
	}
	if c.MaxCFGScale > 0 && req.CFGScale > c.MaxCFGScale {
		issues = append(issues, ValidationIssue{
			Path:    "cfg_scale",
			Message: fmt.Sprintf("cfg_scale %.1f exceeds max %.1f", req.CFGScale, c.MaxCFGScale),
		})
	}

	return ValidationResult{Valid: len(issues) == 0, Issues: issues}
}

// Provider 定义统一的图像生成后端契约。
type Provider interface {
	// Init 用配置初始化 Provider，失败返回错误。
	Init(cfg ProviderConfig) error

	// ValidateRequest 按声明的能力边界校验请求。纯同步，枚举全部违规。
	ValidateRequest(req *GenerateRequest) ValidationResult

	// Generate 从文本提示生成图像。唯一的可失败异步操作；
	// 失败时返回已分类的 *types.Error。
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// HealthCheck 执行轻量级健康探测。不可达时返回 DOWN，不抛错。
	HealthCheck(ctx context.Context) ProviderHealth

	// Name 返回 Provider 的唯一标识。
	Name() string

	// Capabilities 返回声明的能力边界。
	Capabilities() Capabilities

	// Dispose 释放持有的资源，幂等。
	Dispose()
}
