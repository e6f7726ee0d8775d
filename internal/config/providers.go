package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderDefinition is one provider entry in the providers config file.
type ProviderDefinition struct {
	ID            string   `yaml:"id"`
	DisplayName   string   `yaml:"display_name"`
	SupportsBatch bool     `yaml:"supports_batch"`
	SupportsCLI   bool     `yaml:"supports_cli"`
	DefaultMode   string   `yaml:"default_mode"`
	CliCommand    []string `yaml:"cli_command"`
	Throttle      struct {
		MaxConcurrent     int `yaml:"max_concurrent"`
		RequestsPerMinute int `yaml:"requests_per_minute"`
		CoolDownSeconds   int `yaml:"cooldown_seconds"`
	} `yaml:"throttle"`
}

// ProvidersFile is the root of the providers config file.
type ProvidersFile struct {
	Providers []ProviderDefinition `yaml:"providers"`
}

// LoadProviders reads provider definitions from a YAML file.
func LoadProviders(path string) (*ProvidersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers config %s: %w", path, err)
	}
	var file ProvidersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse providers config %s: %w", path, err)
	}
	for i, def := range file.Providers {
		if def.ID == "" {
			return nil, fmt.Errorf("providers config %s: entry %d has no id", path, i)
		}
		if !def.SupportsBatch && !def.SupportsCLI {
			return nil, fmt.Errorf("providers config %s: provider %q declares no capability", path, def.ID)
		}
	}
	return &file, nil
}
