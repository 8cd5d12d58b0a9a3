// Package config handles senseichat configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./senseichat.yaml, ~/.config/senseichat/config.yaml,
// /etc/senseichat/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"senseichat.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "senseichat", "config.yaml"))
	}

	paths = append(paths, "/etc/senseichat/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all senseichat configuration.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Register RegisterConfig `yaml:"register"`
	StateDB  string         `yaml:"state_db"`
	LogFile  string         `yaml:"log_file"`
	LogLevel string         `yaml:"log_level"`
}

// BackendConfig defines how to reach the assistant backend.
type BackendConfig struct {
	// BaseURL is the API root, e.g. "http://localhost:8081/api".
	// All endpoint paths (/auth/login, /chat/conversations, ...) are
	// resolved relative to it.
	BaseURL string `yaml:"base_url"`
	// TimeoutSeconds bounds auxiliary calls (listing, history, logout).
	// Prompt turns use PromptTimeoutSeconds since the assistant can be slow.
	TimeoutSeconds       int `yaml:"timeout_seconds"`
	PromptTimeoutSeconds int `yaml:"prompt_timeout_seconds"`
}

// RegisterConfig defines defaults for the account sign-up form.
type RegisterConfig struct {
	// DefaultRole is pre-selected in the sign-up form. The backend
	// assigns exactly one role per account.
	DefaultRole string `yaml:"default_role"`
}

// Timeout returns the auxiliary-call timeout as a duration.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// PromptTimeout returns the prompt-turn timeout as a duration.
func (b BackendConfig) PromptTimeout() time.Duration {
	if b.PromptTimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(b.PromptTimeoutSeconds) * time.Second
}

// StateDBPath returns the configured state database path, defaulting to
// state.db under the user config directory.
func (c *Config) StateDBPath() (string, error) {
	if c.StateDB != "" {
		return c.StateDB, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "senseichat", "state.db"), nil
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:              "http://localhost:8081/api",
			TimeoutSeconds:       8,
			PromptTimeoutSeconds: 120,
		},
		Register: RegisterConfig{DefaultRole: "CUSTOMER"},
	}
}
