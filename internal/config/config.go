// Package config loads the shotmeter configuration file.
//
// The file lives at Dir()/config.toml. A path ending in .yaml or .yml is
// parsed as YAML instead. A missing file yields the defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/shotmeter/internal/meter"
	"github.com/blackwell-systems/shotmeter/internal/tailer"
)

const (
	defaultWindowSeconds  = 600
	defaultWarningSeconds = 5
	defaultTickMillis     = 1000
	defaultDBPath         = "~/.shotmeter/shotmeter.db"
)

// Config is the resolved configuration. Paths are absolute.
type Config struct {
	LogPath        string
	WindowSeconds  int
	WarningSeconds int
	TickMillis     int
	MaxLineBytes   int
	StateFile      string
	Journal        bool
	DBPath         string
}

// fileConfig mirrors the on-disk keys. Pointers distinguish "unset" from
// zero so warning_seconds = 0 can disable the warning state.
type fileConfig struct {
	LogPath        string `toml:"log_path" yaml:"log_path"`
	WindowSeconds  *int   `toml:"window_seconds" yaml:"window_seconds"`
	WarningSeconds *int   `toml:"warning_seconds" yaml:"warning_seconds"`
	TickMillis     *int   `toml:"tick_millis" yaml:"tick_millis"`
	MaxLineBytes   *int   `toml:"max_line_bytes" yaml:"max_line_bytes"`
	StateFile      string `toml:"state_file" yaml:"state_file"`
	Journal        *bool  `toml:"journal" yaml:"journal"`
	DBPath         string `toml:"db_path" yaml:"db_path"`
}

// Dir returns the shotmeter config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/shotmeter if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "shotmeter"), nil
}

// DefaultPath returns Dir()/config.toml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultLogPath returns where the work-tracking client writes deskapp.log:
// <user config dir>/CrossoverWorkSmart/Logs/deskapp.log.
func DefaultLogPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = mustExpand("~/.config")
	}
	return filepath.Join(base, "CrossoverWorkSmart", "Logs", "deskapp.log")
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		LogPath:        DefaultLogPath(),
		WindowSeconds:  defaultWindowSeconds,
		WarningSeconds: defaultWarningSeconds,
		TickMillis:     defaultTickMillis,
		MaxLineBytes:   tailer.DefaultMaxLineBytes,
		Journal:        true,
		DBPath:         mustExpand(defaultDBPath),
	}
}

// Load reads the config at path (DefaultPath when empty), falling back to
// defaults when the file is missing. The result is not validated.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = toml.Unmarshal(data, &raw)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", resolved, err)
	}

	if err := cfg.merge(raw); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) merge(raw fileConfig) error {
	if p := strings.TrimSpace(raw.LogPath); p != "" {
		expanded, err := expandPath(p)
		if err != nil {
			return fmt.Errorf("log_path: %w", err)
		}
		c.LogPath = expanded
	}
	if p := strings.TrimSpace(raw.StateFile); p != "" {
		expanded, err := expandPath(p)
		if err != nil {
			return fmt.Errorf("state_file: %w", err)
		}
		c.StateFile = expanded
	}
	if p := strings.TrimSpace(raw.DBPath); p != "" {
		expanded, err := expandPath(p)
		if err != nil {
			return fmt.Errorf("db_path: %w", err)
		}
		c.DBPath = expanded
	}
	if raw.WindowSeconds != nil {
		c.WindowSeconds = *raw.WindowSeconds
	}
	if raw.WarningSeconds != nil {
		c.WarningSeconds = *raw.WarningSeconds
	}
	if raw.TickMillis != nil {
		c.TickMillis = *raw.TickMillis
	}
	if raw.MaxLineBytes != nil {
		c.MaxLineBytes = *raw.MaxLineBytes
	}
	if raw.Journal != nil {
		c.Journal = *raw.Journal
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.LogPath) == "" {
		return fmt.Errorf("log_path is required")
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive, got %d", c.WindowSeconds)
	}
	if c.WarningSeconds < 0 || c.WarningSeconds >= c.WindowSeconds {
		return fmt.Errorf("warning_seconds must be in [0, %d), got %d", c.WindowSeconds, c.WarningSeconds)
	}
	if c.TickMillis <= 0 || c.TickMillis >= c.WindowSeconds*1000 {
		return fmt.Errorf("tick_millis must be in (0, %d), got %d", c.WindowSeconds*1000, c.TickMillis)
	}
	if c.MaxLineBytes <= 0 {
		return fmt.Errorf("max_line_bytes must be positive, got %d", c.MaxLineBytes)
	}
	if c.Journal && strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path is required when the journal is enabled")
	}
	return nil
}

// Meter converts the timing settings for the activity meter.
func (c Config) Meter() meter.Config {
	return meter.Config{
		Window:  time.Duration(c.WindowSeconds) * time.Second,
		Warning: time.Duration(c.WarningSeconds) * time.Second,
		Tick:    time.Duration(c.TickMillis) * time.Millisecond,
	}
}

// ExpandPath expands a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPath()
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
