package providers

import (
	"fmt"

	"github.com/aristath/folios/internal/domain"
)

// PluginSpec is the declarative description used to construct a Plugin.
type PluginSpec struct {
	ID            domain.ProviderID
	DisplayName   string
	SupportsBatch bool
	SupportsCLI   bool
	DefaultMode   domain.ExecutionMode
	Throttle      Throttle
	Serializer    RequestSerializer
	BatchExecutor BatchExecutor
	CliExecutor   CliExecutor
	Parser        ResultParser
}

// Plugin is an immutable capability record for one research backend.
// Collaborator presence is validated at construction time, so a plugin that
// declares a capability always carries the executors that capability needs.
type Plugin struct {
	id            domain.ProviderID
	displayName   string
	supportsBatch bool
	supportsCLI   bool
	defaultMode   domain.ExecutionMode
	throttle      Throttle
	serializer    RequestSerializer
	batchExecutor BatchExecutor
	cliExecutor   CliExecutor
	parser        ResultParser
}

// NewPlugin validates the spec and returns an immutable plugin.
// Batch support requires both a serializer and a batch executor; CLI support
// requires a CLI executor (the serializer is optional in CLI mode). Every
// plugin needs a parser and at least one capability.
func NewPlugin(spec PluginSpec) (*Plugin, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("plugin requires a provider id")
	}
	if !spec.SupportsBatch && !spec.SupportsCLI {
		return nil, fmt.Errorf("provider %s must support at least one execution mode", spec.ID)
	}
	if spec.Parser == nil {
		return nil, fmt.Errorf("provider %s requires a result parser", spec.ID)
	}
	if spec.SupportsBatch {
		if spec.BatchExecutor == nil {
			return nil, fmt.Errorf("provider %s declares batch support without a batch executor", spec.ID)
		}
		if spec.Serializer == nil {
			return nil, fmt.Errorf("provider %s declares batch support without a serializer", spec.ID)
		}
	}
	if spec.SupportsCLI && spec.CliExecutor == nil {
		return nil, fmt.Errorf("provider %s declares CLI support without a CLI executor", spec.ID)
	}

	defaultMode := spec.DefaultMode
	if defaultMode == "" {
		if spec.SupportsBatch {
			defaultMode = domain.ModeBatch
		} else {
			defaultMode = domain.ModeCLI
		}
	}

	if spec.Throttle.MaxConcurrent <= 0 {
		spec.Throttle.MaxConcurrent = 1
	}

	return &Plugin{
		id:            spec.ID,
		displayName:   spec.DisplayName,
		supportsBatch: spec.SupportsBatch,
		supportsCLI:   spec.SupportsCLI,
		defaultMode:   defaultMode,
		throttle:      spec.Throttle,
		serializer:    spec.Serializer,
		batchExecutor: spec.BatchExecutor,
		cliExecutor:   spec.CliExecutor,
		parser:        spec.Parser,
	}, nil
}

// ID returns the provider identifier.
func (p *Plugin) ID() domain.ProviderID { return p.id }

// DisplayName returns the human-readable provider name.
func (p *Plugin) DisplayName() string { return p.displayName }

// SupportsBatch reports batch capability.
func (p *Plugin) SupportsBatch() bool { return p.supportsBatch }

// SupportsCLI reports CLI capability.
func (p *Plugin) SupportsCLI() bool { return p.supportsCLI }

// DefaultMode returns the provider's preferred execution mode.
func (p *Plugin) DefaultMode() domain.ExecutionMode { return p.defaultMode }

// Throttle returns the declared rate policy.
func (p *Plugin) Throttle() Throttle { return p.throttle }

// Serializer returns the serializer collaborator, nil when absent.
func (p *Plugin) Serializer() RequestSerializer { return p.serializer }

// BatchExecutor returns the batch executor collaborator, nil when absent.
func (p *Plugin) BatchExecutor() BatchExecutor { return p.batchExecutor }

// CliExecutor returns the CLI executor collaborator, nil when absent.
func (p *Plugin) CliExecutor() CliExecutor { return p.cliExecutor }

// Parser returns the result parser collaborator.
func (p *Plugin) Parser() ResultParser { return p.parser }

// EnsureMode validates that the plugin supports the requested execution mode.
func (p *Plugin) EnsureMode(mode domain.ExecutionMode) error {
	switch mode {
	case domain.ModeBatch:
		if !p.supportsBatch {
			return &UnsupportedModeError{Provider: p.id, Mode: mode}
		}
	case domain.ModeCLI:
		if !p.supportsCLI {
			return &UnsupportedModeError{Provider: p.id, Mode: mode}
		}
	case domain.ModeHybrid:
		if !p.supportsBatch && !p.supportsCLI {
			return &UnsupportedModeError{Provider: p.id, Mode: mode}
		}
	default:
		return &UnsupportedModeError{Provider: p.id, Mode: mode}
	}
	return nil
}

// RequiresSerializer reports whether the given mode needs a non-nil
// serializer. Batch always does; CLI only when one is configured.
func (p *Plugin) RequiresSerializer(mode domain.ExecutionMode) bool {
	if mode == domain.ModeCLI {
		return p.serializer != nil
	}
	return true
}

// CapabilitySummary is a structured summary for API display and logging.
func (p *Plugin) CapabilitySummary() map[string]any {
	return map[string]any{
		"provider_id":    string(p.id),
		"display_name":   p.displayName,
		"supports_batch": p.supportsBatch,
		"supports_cli":   p.supportsCLI,
		"default_mode":   string(p.defaultMode),
		"throttle": map[string]any{
			"max_concurrent":      p.throttle.MaxConcurrent,
			"requests_per_minute": p.throttle.RequestsPerMinute,
			"cool_down_seconds":   p.throttle.CoolDown.Seconds(),
		},
	}
}
