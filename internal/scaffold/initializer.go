// Package scaffold writes a starter duelsync.yml.
package scaffold

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/config"
	"gopkg.in/yaml.v3"
)

//go:embed templates/duelsync.yml.tmpl
var configTemplate []byte

// Initialize writes the starter config into dir and returns its path.
// An existing config is only replaced when force is set.
func Initialize(dir string, force bool) (string, error) {
	path := filepath.Join(dir, config.DefaultPath)

	if !force {
		if err := CheckExisting(dir); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, configTemplate, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := validateCreatedFile(path); err != nil {
		return "", err
	}

	return path, nil
}

// validateCreatedFile checks the written file parses and validates without
// environment overrides.
func validateCreatedFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", path, err)
	}

	cfg := config.Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return fmt.Errorf("created %s is not valid YAML: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("created %s is not a valid configuration: %w", path, err)
	}

	return nil
}
