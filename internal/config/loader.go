package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".overflowscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads a configuration file. Files ending in ".toml" are
// decoded as TOML, everything else as YAML. A missing file yields
// ErrConfigNotFound; callers decide whether that matters.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cf); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Targets == nil {
		cf.Targets = make(map[string]TargetConfig)
	}
	for name := range cf.Targets {
		if err := ValidateTargetName(name); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return &cf, nil
}

// candidateNames are tried in every search directory, in order.
var candidateNames = []string{DefaultConfigFile, DefaultConfigFile + ".toml"}

// FindConfigFile searches for the configuration file in the following order:
//  1. configPath, when specified
//  2. .overflowscan or .overflowscan.toml in the current directory
//  3. the same names in the user's home directory
//  4. config.yaml or config.toml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		for _, name := range candidateNames {
			candidates = append(candidates, filepath.Join(cwd, name))
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range candidateNames {
			candidates = append(candidates, filepath.Join(home, name))
		}
	}
	candidates = append(candidates,
		filepath.Join(XDGConfigDir(), "config.yaml"),
		filepath.Join(XDGConfigDir(), "config.toml"),
	)

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}
