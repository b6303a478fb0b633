package image

import "time"

// ProviderConfig 单个后端的配置，编排器构造时一次性提供，视为不可变。
type ProviderConfig struct {
	ProviderID  string        `json:"provider_id" yaml:"provider_id"`
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries  int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	BaseBackoff time.Duration `json:"base_backoff,omitempty" yaml:"base_backoff,omitempty"`
}

// DefaultOpenAIConfig 返回默认的 OpenAI 图像配置。
func DefaultOpenAIConfig() ProviderConfig {
	return ProviderConfig{
		ProviderID:  "openai-image",
		BaseURL:     "https://api.openai.com",
		Model:       "dall-e-3",
		Timeout:     120 * time.Second,
		MaxRetries:  3,
		BaseBackoff: 1 * time.Second,
	}
}

// DefaultFluxConfig 返回默认的 Black Forest Labs Flux 配置。
func DefaultFluxConfig() ProviderConfig {
	return ProviderConfig{
		ProviderID:  "flux",
		BaseURL:     "https://api.bfl.ai",
		Model:       "flux-2-pro",
		Timeout:     120 * time.Second,
		MaxRetries:  3,
		BaseBackoff: 1 * time.Second,
	}
}
