// =============================================================================
// 📦 ImageFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Orchestrator: DefaultOrchestratorConfig(),
		OpenAI:       DefaultOpenAISettings(),
		Flux:         DefaultFluxSettings(),
		Retry:        DefaultRetryConfig(),
		Log:          DefaultLogConfig(),
	}
}

// DefaultOrchestratorConfig 返回默认编排配置
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		EnableCrossValidation: false,
		PreferredProvider:     "",
		HealthInterval:        0,
	}
}

// DefaultOpenAISettings 返回 OpenAI 图像 Provider 的默认配置
func DefaultOpenAISettings() ProviderSettings {
	return ProviderSettings{
		Enabled: true,
		BaseURL: "https://api.openai.com",
		Model:   "dall-e-3",
		Timeout: 120 * time.Second,
	}
}

// DefaultFluxSettings 返回 Flux 图像 Provider 的默认配置
func DefaultFluxSettings() ProviderSettings {
	return ProviderSettings{
		Enabled: true,
		BaseURL: "https://api.bfl.ai",
		Model:   "flux-2-pro",
		Timeout: 120 * time.Second,
	}
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseBackoff: time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}
