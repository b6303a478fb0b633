// Package imageflow provides a top-level convenience entry point for creating
// a dual-provider image generation orchestrator with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/imageflow"
//
//	o, err := imageflow.New(imageflow.WithOpenAI(""), imageflow.WithFlux(""))
//	o, err := imageflow.New(imageflow.WithProvider(myProvider), imageflow.WithProvider(otherProvider))
//	o, err := imageflow.NewFromConfig(cfg)
//
// API keys fall back to the OPENAI_API_KEY and BFL_API_KEY environment
// variables when not given explicitly.
package imageflow

import (
	"fmt"
	"os"
	"time"

	"github.com/BaSui01/imageflow/config"
	"github.com/BaSui01/imageflow/image"
	"github.com/BaSui01/imageflow/internal/metrics"
	"github.com/BaSui01/imageflow/orchestrator"
	"github.com/BaSui01/imageflow/retry"
	"go.uber.org/zap"
)

// Option configures the orchestrator created by [New].
type Option func(*options)

type options struct {
	providers        []image.Provider
	providerPolicies map[string]*retry.Policy

	openaiCfg *image.ProviderConfig
	fluxCfg   *image.ProviderConfig

	retryPolicy      *retry.Policy
	scorer           orchestrator.Scorer
	notify           orchestrator.NotifyFunc
	logger           *zap.Logger
	metricsNamespace string
	healthInterval   time.Duration // 0 disables the background loop
}

// WithProvider registers a pre-built provider.
func WithProvider(p image.Provider) Option {
	return func(o *options) { o.providers = append(o.providers, p) }
}

// WithOpenAI registers the OpenAI image provider. An empty key falls back
// to the OPENAI_API_KEY environment variable.
func WithOpenAI(apiKey string) Option {
	return func(o *options) {
		cfg := image.DefaultOpenAIConfig()
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		cfg.APIKey = apiKey
		o.openaiCfg = &cfg
	}
}

// WithFlux registers the Black Forest Labs Flux provider. An empty key
// falls back to the BFL_API_KEY environment variable.
func WithFlux(apiKey string) Option {
	return func(o *options) {
		cfg := image.DefaultFluxConfig()
		if apiKey == "" {
			apiKey = os.Getenv("BFL_API_KEY")
		}
		cfg.APIKey = apiKey
		o.fluxCfg = &cfg
	}
}

// WithOpenAIConfig registers the OpenAI image provider with a full config.
func WithOpenAIConfig(cfg image.ProviderConfig) Option {
	return func(o *options) { o.openaiCfg = &cfg }
}

// WithFluxConfig registers the Flux provider with a full config.
func WithFluxConfig(cfg image.ProviderConfig) Option {
	return func(o *options) { o.fluxCfg = &cfg }
}

// WithRetryPolicy sets the default retry policy for all providers.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) { o.retryPolicy = &p }
}

// WithScorer overrides the cross-validation scorer.
func WithScorer(s orchestrator.Scorer) Option {
	return func(o *options) { o.scorer = s }
}

// WithNotify sets the user-facing notification side channel.
func WithNotify(fn orchestrator.NotifyFunc) Option {
	return func(o *options) { o.notify = fn }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics enables Prometheus metrics under the given namespace.
// Metrics are registered with the default registerer, so enable this at
// most once per process.
func WithMetrics(namespace string) Option {
	return func(o *options) { o.metricsNamespace = namespace }
}

// WithHealthInterval starts the background health probe loop with the
// given period.
func WithHealthInterval(interval time.Duration) Option {
	return func(o *options) { o.healthInterval = interval }
}

// New creates an [orchestrator.Orchestrator] with minimal configuration.
// At least two providers must be available for dual dispatch; register
// them via [WithOpenAI], [WithFlux], or [WithProvider].
func New(opts ...Option) (*orchestrator.Orchestrator, error) {
	o := &options{providerPolicies: make(map[string]*retry.Policy)}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	registry := image.NewRegistry()

	if o.openaiCfg != nil {
		if o.openaiCfg.APIKey == "" {
			return nil, fmt.Errorf("API key is required for openai: set OPENAI_API_KEY or pass it to WithOpenAI")
		}
		p := image.NewOpenAIProvider(*o.openaiCfg, o.logger)
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("register openai provider: %w", err)
		}
		if policy := policyFromProviderConfig(*o.openaiCfg); policy != nil {
			o.providerPolicies[p.Name()] = policy
		}
	}
	if o.fluxCfg != nil {
		if o.fluxCfg.APIKey == "" {
			return nil, fmt.Errorf("API key is required for flux: set BFL_API_KEY or pass it to WithFlux")
		}
		p := image.NewFluxProvider(*o.fluxCfg, o.logger)
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("register flux provider: %w", err)
		}
		if policy := policyFromProviderConfig(*o.fluxCfg); policy != nil {
			o.providerPolicies[p.Name()] = policy
		}
	}
	for _, p := range o.providers {
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("register provider %s: %w", p.Name(), err)
		}
	}

	if registry.Len() == 0 {
		return nil, fmt.Errorf("at least one provider is required: use WithOpenAI, WithFlux, or WithProvider")
	}

	var collector *metrics.Collector
	if o.metricsNamespace != "" {
		collector = metrics.NewCollector(o.metricsNamespace, o.logger)
	}

	orch := orchestrator.New(registry, orchestrator.Options{
		RetryPolicy:      o.retryPolicy,
		ProviderPolicies: o.providerPolicies,
		Scorer:           o.scorer,
		Notify:           o.notify,
		Metrics:          collector,
		Logger:           o.logger,
	})

	if o.healthInterval > 0 {
		orch.Health().Start(o.healthInterval)
	}
	return orch, nil
}

// NewFromConfig creates an orchestrator from a loaded [config.Config].
func NewFromConfig(cfg *config.Config, opts ...Option) (*orchestrator.Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := []Option{
		WithRetryPolicy(retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseBackoff: cfg.Retry.BaseBackoff,
			MaxDelay:    cfg.Retry.MaxDelay,
		}),
	}
	if cfg.OpenAI.Enabled {
		base = append(base, WithOpenAIConfig(providerConfigFromSettings("openai-image", cfg.OpenAI)))
	}
	if cfg.Flux.Enabled {
		base = append(base, WithFluxConfig(providerConfigFromSettings("flux", cfg.Flux)))
	}
	if cfg.Orchestrator.HealthInterval > 0 {
		base = append(base, WithHealthInterval(cfg.Orchestrator.HealthInterval))
	}

	return New(append(base, opts...)...)
}

func providerConfigFromSettings(id string, s config.ProviderSettings) image.ProviderConfig {
	return image.ProviderConfig{
		ProviderID:  id,
		APIKey:      s.APIKey,
		BaseURL:     s.BaseURL,
		Model:       s.Model,
		Timeout:     s.Timeout,
		MaxRetries:  s.MaxRetries,
		BaseBackoff: s.BaseBackoff,
	}
}

// policyFromProviderConfig derives a per-provider retry policy; zero
// fields fall back to the orchestrator default.
func policyFromProviderConfig(cfg image.ProviderConfig) *retry.Policy {
	if cfg.MaxRetries == 0 && cfg.BaseBackoff == 0 {
		return nil
	}
	p := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		p.MaxAttempts = cfg.MaxRetries
	}
	if cfg.BaseBackoff > 0 {
		p.BaseBackoff = cfg.BaseBackoff
	}
	return p
}
