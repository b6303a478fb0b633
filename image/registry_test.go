package image

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name     string
	disposed int
}

func (f *fakeProvider) Init(ProviderConfig) error { return nil }
func (f *fakeProvider) ValidateRequest(*GenerateRequest) ValidationResult {
	return ValidationResult{Valid: true}
}
func (f *fakeProvider) Generate(context.Context, *GenerateRequest) (*GenerateResponse, error) {
	return &GenerateResponse{Provider: f.name}, nil
}
func (f *fakeProvider) HealthCheck(context.Context) ProviderHealth {
	return ProviderHealth{State: HealthUp}
}
func (f *fakeProvider) Name() string               { return f.name }
func (f *fakeProvider) Capabilities() Capabilities { return Capabilities{} }
func (f *fakeProvider) Dispose()                   { f.disposed++ }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := &fakeProvider{name: "openai-image"}
	require.NoError(t, r.Register(p))

	got, ok := r.Get("openai-image")
	assert.True(t, ok)
	assert.Same(t, Provider(p), got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeProvider{name: "flux"}))
	err := r.Register(&fakeProvider{name: "flux"})
	assert.Error(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&fakeProvider{name: ""}))
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeProvider{name: "flux"}))
	require.NoError(t, r.Register(&fakeProvider{name: "openai-image"}))
	assert.Equal(t, []string{"flux", "openai-image"}, r.List())
}

func TestRegistry_DisposeAll(t *testing.T) {
	r := NewRegistry()
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	r.DisposeAll()
	r.DisposeAll()
	assert.Equal(t, 2, a.disposed)
	assert.Equal(t, 2, b.disposed)
}
