package imageflow

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/imageflow/config"
	"github.com/BaSui01/imageflow/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresProvider(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one provider")
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(WithOpenAI(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	t.Setenv("BFL_API_KEY", "")
	_, err = New(WithFlux(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BFL_API_KEY")
}

func TestNew_WithBuiltinProviders(t *testing.T) {
	o, err := New(WithOpenAI("sk-test"), WithFlux("bfl-key"))
	require.NoError(t, err)
	defer o.Dispose()

	assert.ElementsMatch(t, []string{"openai-image", "flux"}, o.Registry().List())
}

func TestNew_WithCustomProviders(t *testing.T) {
	a := mocks.NewMockProvider("alpha")
	b := mocks.NewMockProvider("beta")

	o, err := New(WithProvider(a), WithProvider(b))
	require.NoError(t, err)
	defer o.Dispose()

	results := o.CheckProvidersHealth(context.Background())
	assert.Len(t, results, 2)
}

func TestNew_DuplicateProviderRejected(t *testing.T) {
	_, err := New(
		WithProvider(mocks.NewMockProvider("alpha")),
		WithProvider(mocks.NewMockProvider("alpha")),
	)
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Flux.APIKey = "bfl-key"
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.BaseBackoff = 100 * time.Millisecond

	o, err := NewFromConfig(cfg)
	require.NoError(t, err)
	defer o.Dispose()

	assert.ElementsMatch(t, []string{"openai-image", "flux"}, o.Registry().List())
}

func TestNewFromConfig_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Retry.MaxAttempts = 0

	_, err := NewFromConfig(cfg)
	assert.Error(t, err)
}
