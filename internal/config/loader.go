package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ConfigPath returns the default configuration file path: ~/.botonex/config.toml.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// DataDir returns the botonex data directory: ~/.botonex.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".botonex"
	}
	return filepath.Join(home, ".botonex")
}

type format int

const (
	formatJSON format = iota
	formatTOML
	formatYAML
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

func unmarshal(f format, data []byte, v any) error {
	switch f {
	case formatTOML:
		return toml.Unmarshal(data, v)
	case formatYAML:
		return yaml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

func marshal(f format, v any) ([]byte, error) {
	switch f {
	case formatTOML:
		return toml.Marshal(v)
	case formatYAML:
		return yaml.Marshal(v)
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		// Append a trailing newline for POSIX compliance.
		return append(data, '\n'), nil
	}
}

// Load reads and parses the config file at path.
// If path is empty, ConfigPath() is used.
// On parse failure it prints a warning and returns DefaultConfig().
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := unmarshal(formatOf(path), data, &cfg); err != nil {
		fmt.Printf("Warning: failed to parse config %s: %v\n", path, err)
		fmt.Println("Using default configuration.")
		cfg2 := DefaultConfig()
		return &cfg2, nil
	}

	return &cfg, nil
}

// Save writes cfg to path in the format implied by its extension.
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := marshal(formatOf(path), cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
