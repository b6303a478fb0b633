package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseBackoff)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, "dall-e-3", cfg.OpenAI.Model)
	assert.Equal(t, "flux-2-pro", cfg.Flux.Model)
	assert.False(t, cfg.Orchestrator.EnableCrossValidation)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
orchestrator:
  enable_cross_validation: true
  preferred_provider: flux
openai:
  api_key: sk-test
  model: dall-e-2
retry:
  max_attempts: 5
  base_backoff: 500ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.True(t, cfg.Orchestrator.EnableCrossValidation)
	assert.Equal(t, "flux", cfg.Orchestrator.PreferredProvider)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "dall-e-2", cfg.OpenAI.Model)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseBackoff)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 文件未覆盖的字段保持默认值
	assert.Equal(t, "flux-2-pro", cfg.Flux.Model)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry:\n  max_attempts: 5\n"), 0o644))

	t.Setenv("IMAGEFLOW_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("IMAGEFLOW_FLUX_API_KEY", "bfl-key")
	t.Setenv("IMAGEFLOW_FLUX_TIMEOUT", "90s")
	t.Setenv("IMAGEFLOW_ORCHESTRATOR_ENABLE_CROSS_VALIDATION", "true")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, "bfl-key", cfg.Flux.APIKey)
	assert.Equal(t, 90*time.Second, cfg.Flux.Timeout)
	assert.True(t, cfg.Orchestrator.EnableCrossValidation)
}

func TestLoad_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_LOG_LEVEL", "warn")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry: [broken"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Flux.APIKey = "bfl-key"
	assert.NoError(t, cfg.Validate())

	cfg.Retry.MaxAttempts = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts")

	cfg = DefaultConfig()
	cfg.Flux.Enabled = true
	cfg.Flux.APIKey = ""
	cfg.OpenAI.Enabled = false
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flux.api_key")
}

func TestLoad_ValidatorHook(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return assert.AnError }).
		Load()
	assert.Error(t, err)
}
