package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds everything groupsync reads at startup.
type Config struct {
	APIURL       string
	Token        string
	Timezone     string
	PollInterval time.Duration
	TickInterval time.Duration
	HealTicks    int
	RequestRate  float64
	RequestBurst int
	LogDir       string
	LogLevel     slog.Level
}

const (
	defaultConfigPath   = "~/.config/groupsync/config.toml"
	defaultLogDir       = "~/.local/share/groupsync/logs"
	defaultAPIURL       = "127.0.0.1:8080"
	defaultPollInterval = 15 * time.Second
	defaultTickInterval = time.Second
	defaultHealTicks    = 20
	defaultRequestRate  = 5
	defaultRequestBurst = 5

	envAPIURL = "GROUPSYNC_API_URL"
	envToken  = "GROUPSYNC_TOKEN"
)

type fileConfig struct {
	APIURL       string   `toml:"api_url" yaml:"api_url"`
	Token        string   `toml:"token" yaml:"token"`
	Timezone     string   `toml:"timezone" yaml:"timezone"`
	PollInterval Duration `toml:"poll_interval" yaml:"poll_interval"`
	TickInterval Duration `toml:"tick_interval" yaml:"tick_interval"`
	HealTicks    int      `toml:"heal_ticks" yaml:"heal_ticks"`
	RequestRate  float64  `toml:"request_rate" yaml:"request_rate"`
	RequestBurst int      `toml:"request_burst" yaml:"request_burst"`
	LogDir       string   `toml:"log_dir" yaml:"log_dir"`
	LogLevel     string   `toml:"log_level" yaml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:       defaultAPIURL,
		PollInterval: defaultPollInterval,
		TickInterval: defaultTickInterval,
		HealTicks:    defaultHealTicks,
		RequestRate:  defaultRequestRate,
		RequestBurst: defaultRequestBurst,
		LogDir:       mustExpand(defaultLogDir),
		LogLevel:     slog.LevelInfo,
	}
}

// Load reads the config file at path, falling back to defaults when it is
// missing. Files ending in .yaml or .yml are read as YAML, anything else as
// TOML. Environment overrides are applied last.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &raw)
	default:
		err = toml.Unmarshal(bytes, &raw)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.merge(raw); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func (c *Config) merge(raw fileConfig) error {
	if v := strings.TrimSpace(raw.APIURL); v != "" {
		c.APIURL = v
	}
	c.Token = strings.TrimSpace(raw.Token)
	c.Timezone = strings.TrimSpace(raw.Timezone)
	if raw.PollInterval.Duration > 0 {
		c.PollInterval = raw.PollInterval.Duration
	}
	if raw.TickInterval.Duration > 0 {
		c.TickInterval = raw.TickInterval.Duration
	}
	if raw.HealTicks > 0 {
		c.HealTicks = raw.HealTicks
	}
	if raw.RequestRate > 0 {
		c.RequestRate = raw.RequestRate
	}
	if raw.RequestBurst > 0 {
		c.RequestBurst = raw.RequestBurst
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		c.LogDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		level, err := ParseLevel(v)
		if err != nil {
			return err
		}
		c.LogLevel = level
	}
	return nil
}

func applyEnv(c *Config) {
	if v := strings.TrimSpace(os.Getenv(envAPIURL)); v != "" {
		c.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envToken)); v != "" {
		c.Token = v
	}
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log_level: %w", err)
	}
	return level, nil
}

// LogPath returns the application log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/groupsync.log")
	}
	return filepath.Join(c.LogDir, "groupsync.log")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
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
