package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folios/internal/domain"
)

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()

	first, err := NewPlugin(batchSpec())
	require.NoError(t, err)
	require.NoError(t, registry.Register(first, false))

	duplicate, err := NewPlugin(batchSpec())
	require.NoError(t, err)
	assert.Error(t, registry.Register(duplicate, false), "duplicate id must be rejected")
	assert.NoError(t, registry.Register(duplicate, true), "override replaces the plugin")
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_Require(t *testing.T) {
	registry := NewRegistry()
	plugin, err := NewPlugin(batchSpec())
	require.NoError(t, err)
	require.NoError(t, registry.Register(plugin, false))

	got, err := registry.Require(domain.ProviderOpenAI, domain.ModeBatch)
	require.NoError(t, err)
	assert.Equal(t, plugin, got)

	_, err = registry.Require(domain.ProviderOpenAI, domain.ModeCLI)
	var unsupported *UnsupportedModeError
	assert.ErrorAs(t, err, &unsupported)

	_, err = registry.Require(domain.ProviderGemini, domain.ModeBatch)
	assert.Error(t, err, "unknown provider")
}

func TestRegistry_List(t *testing.T) {
	registry := NewRegistry()

	spec := batchSpec()
	spec.ID = domain.ProviderOpenAI
	openai, err := NewPlugin(spec)
	require.NoError(t, err)

	spec = batchSpec()
	spec.ID = domain.ProviderAnthropic
	anthropic, err := NewPlugin(spec)
	require.NoError(t, err)

	require.NoError(t, registry.Register(openai, false))
	require.NoError(t, registry.Register(anthropic, false))

	plugins := registry.List()
	require.Len(t, plugins, 2)
	assert.Equal(t, domain.ProviderAnthropic, plugins[0].ID(), "list is ordered by id")
	assert.Equal(t, domain.ProviderOpenAI, plugins[1].ID())

	assert.True(t, registry.Supports(domain.ProviderOpenAI, domain.ModeBatch))
	assert.False(t, registry.Supports(domain.ProviderOpenAI, domain.ModeCLI))
}
