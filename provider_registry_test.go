package gdao

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock provider factory for testing
type mockFactory struct {
	created []Config
	session *fakeSession
}

func (f *mockFactory) Create(config Config) (SessionFactory, error) {
	f.created = append(f.created, config)
	return &fakeFactory{session: f.session}, nil
}

func (f *mockFactory) SupportedDrivers() []string { return []string{"fake"} }

func TestProviderRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	factory := &mockFactory{}

	registry.Register("Mock", factory)

	got, err := registry.Get("mock")
	require.NoError(t, err)
	assert.Same(t, factory, got)
	assert.Equal(t, []string{"mock"}, registry.List())
}

func TestProviderRegistry_GetMissing(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestProviderRegistry_ReplaceAndUnregister(t *testing.T) {
	registry := NewRegistry()
	first, second := &mockFactory{}, &mockFactory{}

	registry.Register("mock", first)
	registry.Register("mock", second)
	got, err := registry.Get("mock")
	require.NoError(t, err)
	assert.Same(t, second, got)

	registry.Unregister("mock")
	assert.Empty(t, registry.List())
}

func TestOpenUsesConfiguredProvider(t *testing.T) {
	factory := &mockFactory{session: newFakeSession()}
	RegisterProvider("registry-test", factory)
	defer DefaultRegistry.Unregister("registry-test")

	sf, err := Open(Config{Provider: "registry-test", Driver: "fake"})
	require.NoError(t, err)
	require.Len(t, factory.created, 1)
	assert.Equal(t, "fake", factory.created[0].Driver)
	assert.Contains(t, ListProviders(), "registry-test")

	s, err := sf.OpenSession(context.Background())
	require.NoError(t, err)
	assert.True(t, s.IsOpen())

	_, err = Open(Config{Provider: "nope"})
	assert.True(t, IsNotFound(err))
}

func TestProviderInfoHas(t *testing.T) {
	info := ProviderInfo{Features: []Feature{FeatureTransactions, FeatureJoins}}
	assert.True(t, info.Has(FeatureJoins))
	assert.False(t, info.Has(FeatureRawSQL))
}
