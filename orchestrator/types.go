package orchestrator

import (
	"time"

	"github.com/BaSui01/imageflow/image"
	"github.com/BaSui01/imageflow/types"
)

// GenerationStatus 单个派发槽位的生命周期状态。
type GenerationStatus string

const (
	StatusQueued    GenerationStatus = "queued"
	StatusRunning   GenerationStatus = "running"
	StatusSucceeded GenerationStatus = "succeeded"
	StatusFailed    GenerationStatus = "failed"
)

// Terminal 返回状态是否为终态。终态之后记录被冻结。
func (s GenerationStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// GenerationProgress 每个 (request, slot) 一条的进度记录。
// 派发时创建，由重试执行器就地更新，进入终态后冻结。
type GenerationProgress struct {
	Provider  string           `json:"provider"`
	Status    GenerationStatus `json:"status"`
	Progress  float64          `json:"progress"` // 0-100
	StartedAt time.Time        `json:"started_at,omitempty"`
	UpdatedAt time.Time        `json:"updated_at,omitempty"`
	Error     *types.Error     `json:"error,omitempty"`
}

// DualProviderProgress 聚合双槽位进度与派生的总进度。
// 按请求 id 创建，订阅者退订后丢弃。
type DualProviderProgress struct {
	RequestID string             `json:"request_id"`
	SlotA     GenerationProgress `json:"slot_a"`
	SlotB     GenerationProgress `json:"slot_b"`
	Overall   float64            `json:"overall"` // 两槽位进度均值
	UpdatedAt time.Time          `json:"updated_at"`
}

// ProviderScore 交叉验证中单个 Provider 的结果。
type ProviderScore struct {
	Valid    bool     `json:"valid"`
	Score    float64  `json:"score"` // [0,1]
	Messages []string `json:"messages,omitempty"`
}

// CrossValidationReport 双方都成功且请求了交叉验证时产生，
// 不可变，返回给调用方用于审计。
type CrossValidationReport struct {
	Validator      string                   `json:"validator"` // 名称/版本
	Strategy       string                   `json:"strategy"`  // "max"
	ProviderA      string                   `json:"provider_a"`
	ProviderB      string                   `json:"provider_b"`
	Results        map[string]ProviderScore `json:"results"`
	Winner         string                   `json:"winner"`
	CompositeScore float64                  `json:"composite_score"`
}

// DualProviderResponse 双路派发的权威结果。
// 不变式：Primary 必然非空，否则整个操作以错误收场。
type DualProviderResponse struct {
	RequestID        string                  `json:"request_id"`
	Primary          *image.GenerateResponse `json:"primary"`
	Secondary        *image.GenerateResponse `json:"secondary,omitempty"`
	SelectedProvider string                  `json:"selected_provider"`
	FailoverOccurred bool                    `json:"failover_occurred"`
	CrossValidation  *CrossValidationReport  `json:"cross_validation,omitempty"`
	TotalLatencyMs   int64                   `json:"total_latency_ms"`
	Warnings         []string                `json:"warnings,omitempty"` // 降级/failover 注记
}

// NotifyLevel 通知侧信道的级别。
type NotifyLevel string

const (
	NotifySuccess NotifyLevel = "success"
	NotifyWarning NotifyLevel = "warning"
	NotifyError   NotifyLevel = "error"
)

// NotifyFunc 抽象的用户可见通知效果。非交互部署下可为 no-op。
type NotifyFunc func(level NotifyLevel, message string)
