// pattern: Imperative Shell

// Package config loads the user-level peniche settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"peniche/internal/ui"
)

const (
	appName        = "peniche"
	configFileName = "config.yaml"
	logFileName    = "peniche.log"
)

// DefaultCommandsFile is the command configuration looked up when none is
// configured.
const DefaultCommandsFile = "Peniche.toml"

type Config struct {
	Theme        string        `yaml:"theme"`
	LogLevel     string        `yaml:"log_level"`
	CommandsFile string        `yaml:"commands_file"`
	Timeout      time.Duration `yaml:"timeout"`
	NoColor      bool          `yaml:"no_color"`
}

func DefaultConfig() Config {
	return Config{
		Theme:        ui.DefaultTheme,
		LogLevel:     "info",
		CommandsFile: DefaultCommandsFile,
	}
}

// Load reads config.yaml from the default directory.
func Load() (Config, error) {
	return LoadFromDir(DefaultDir())
}

// LoadFromDir reads config.yaml from dir.
func LoadFromDir(dir string) (Config, error) {
	return LoadFrom(filepath.Join(dir, configFileName))
}

// LoadFrom reads the config at configPath. A missing file yields defaults.
func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing %s: %w", configPath, err)
	}

	if cfg.Theme == "" {
		cfg.Theme = ui.DefaultTheme
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.CommandsFile == "" {
		cfg.CommandsFile = DefaultCommandsFile
	}

	return cfg, cfg.Validate()
}

// Validate reports settings that would be silently ignored otherwise.
func (c Config) Validate() error {
	if !ui.ValidTheme(c.Theme) {
		return fmt.Errorf("unknown theme %q (valid: latte, frappe, macchiato, mocha)", c.Theme)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// ResolveDir returns configDir when set, otherwise the default directory.
func ResolveDir(configDir string) string {
	if configDir != "" {
		return configDir
	}
	return DefaultDir()
}

// DefaultDir is $XDG_CONFIG_HOME/peniche, falling back to ~/.config/peniche.
func DefaultDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", appName)
	}

	return filepath.Join(home, ".config", appName)
}

// LogPath returns the log file location inside dir.
func LogPath(dir string) string {
	return filepath.Join(dir, logFileName)
}
