package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aristath/folios/internal/domain"
)

// Registry maps provider identifiers to plugins. Plugins are registered once
// at process start; lookups happen on every dispatch, so reads take the
// cheaper lock.
type Registry struct {
	plugins map[domain.ProviderID]*Plugin
	mu      sync.RWMutex
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[domain.ProviderID]*Plugin),
	}
}

// Register adds a plugin. Duplicate ids are rejected unless override is set.
func (r *Registry) Register(plugin *Plugin, override bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.plugins[plugin.ID()]; ok && !override {
		return fmt.Errorf("provider %s already registered (%s)", plugin.ID(), existing.DisplayName())
	}
	r.plugins[plugin.ID()] = plugin
	return nil
}

// Get returns the plugin for the given id.
func (r *Registry) Get(id domain.ProviderID) (*Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugin, ok := r.plugins[id]
	if !ok {
		return nil, fmt.Errorf("unknown provider %s", id)
	}
	return plugin, nil
}

// Supports reports whether the provider exists and handles the given mode.
func (r *Registry) Supports(id domain.ProviderID, mode domain.ExecutionMode) bool {
	plugin, err := r.Get(id)
	if err != nil {
		return false
	}
	return plugin.EnsureMode(mode) == nil
}

// Require returns the plugin and validates the requested mode, surfacing an
// UnsupportedModeError when the capability is missing.
func (r *Registry) Require(id domain.ProviderID, mode domain.ExecutionMode) (*Plugin, error) {
	plugin, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if err := plugin.EnsureMode(mode); err != nil {
		return nil, err
	}
	return plugin, nil
}

// List returns all registered plugins ordered by id.
func (r *Registry) List() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(r.plugins))
	for _, plugin := range r.plugins {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].ID() < plugins[j].ID()
	})
	return plugins
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.plugins)
}
