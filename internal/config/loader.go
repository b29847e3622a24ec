package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ConfigDir is the directory name under ~/.config and inside a workspace
	// (as a dot directory).
	ConfigDir = "agentcore"
	// ConfigFile is the config file name
	ConfigFile = "config.json"
	// RulesFile is the default permanent permission rules file name
	RulesFile = "permissions.json"

	// Environment overrides, applied after every file layer.
	EnvModel    = "AGENTCORE_MODEL"
	EnvLogLevel = "AGENTCORE_LOG_LEVEL"
)

// FileSystem abstracts file operations for testability
type FileSystem interface {
	UserHomeDir() (string, error)
	ReadFile(path string) ([]byte, error)
}

// ConfigFileReader implements FileSystem using the real OS for config loading
type ConfigFileReader struct{}

func (ConfigFileReader) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

func (ConfigFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader builds a Config from layers: defaults, then each config file in
// order, then environment overrides. Validation runs once on the result.
type Loader struct {
	fs     FileSystem
	getenv func(string) string
}

// NewLoader creates a production Loader using the real filesystem and environment.
func NewLoader() *Loader {
	return &Loader{fs: ConfigFileReader{}, getenv: os.Getenv}
}

// NewLoaderWithFS creates a Loader with a custom filesystem and no
// environment overrides (for testing).
func NewLoaderWithFS(fs FileSystem) *Loader {
	return &Loader{fs: fs, getenv: func(string) string { return "" }}
}

// WithEnv replaces the environment lookup.
func (l *Loader) WithEnv(getenv func(string) string) *Loader {
	l.getenv = getenv
	return l
}

// UserConfigPath is ~/.config/agentcore/config.json, or "" without a home directory.
func (l *Loader) UserConfigPath() string {
	homeDir, err := l.fs.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", ConfigDir, ConfigFile)
}

// WorkspaceConfigPath is the per-project config file inside root.
func WorkspaceConfigPath(root string) string {
	return filepath.Join(root, "."+ConfigDir, ConfigFile)
}

// Load reads the user config file over the defaults.
// Returns default config if the dotfile or home directory doesn't exist.
func (l *Loader) Load() (*Config, error) {
	return l.LoadLayers(l.UserConfigPath())
}

// LoadFile is Load with an explicit config path.
func (l *Loader) LoadFile(configPath string) (*Config, error) {
	return l.LoadLayers(configPath)
}

// LoadLayers applies each file in order over the defaults. Empty paths and
// missing files are skipped.
//
// NOTE: Each layer unmarshals directly over the previous result, so explicit
// zero values (e.g., 0, false, "") in a later file override earlier ones.
func (l *Loader) LoadLayers(paths ...string) (*Config, error) {
	cfg := DefaultConfig()
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := l.overlay(cfg, path); err != nil {
			return nil, err
		}
	}
	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) overlay(cfg *Config, path string) error {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (l *Loader) applyEnv(cfg *Config) {
	if v := l.getenv(EnvModel); v != "" {
		cfg.Provider.Model = v
	}
	if v := l.getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

// RulesPath returns the permanent rules file, resolving the default location
// under the user's config directory when none is configured.
func (l *Loader) RulesPath(cfg *Config) (string, error) {
	if cfg.Permission.RulesFile != "" {
		return cfg.Permission.RulesFile, nil
	}
	homeDir, err := l.fs.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", ConfigDir, RulesFile), nil
}

// Load is a convenience function using the default loader
func Load() (*Config, error) {
	return NewLoader().Load()
}
