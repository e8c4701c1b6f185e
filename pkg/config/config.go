// Package config resolves alerthub settings from defaults, a config file and the environment.
//
// Precedence, lowest first: built-in defaults, $ALERTHUB_HOME/config.yaml (or a
// .toml file), ALERTHUB_* environment variables. Command-line flags are applied
// on top by the binaries.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"alerthub/pkg/protocol"
)

// Config holds the resolved settings.
type Config struct {
	BaseURL        string
	PushURL        string // explicit push endpoint; empty derives ws://<base host>:<PushPort>
	PushPort       int
	PollInterval   time.Duration
	ReconnectDelay time.Duration
	HTTPTimeout    time.Duration
	CacheSize      int
	ExportLimit    int
	RefreshOnPush  bool
	LogLevel       string
	FaultDB        string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:        protocol.DefaultBaseURL,
		PushPort:       protocol.DefaultPushPort,
		PollInterval:   protocol.DefaultPollInterval,
		ReconnectDelay: protocol.DefaultReconnectDelay,
		HTTPTimeout:    protocol.DefaultHTTPTimeout,
		CacheSize:      protocol.DefaultCacheSize,
		ExportLimit:    protocol.DefaultExportLimit,
		LogLevel:       "info",
	}
}

// fileConfig mirrors the on-disk format. Durations are Go duration strings ("4s", "1500ms").
type fileConfig struct {
	BaseURL        string `yaml:"base_url"        toml:"base_url"`
	PushURL        string `yaml:"push_url"        toml:"push_url"`
	PushPort       int    `yaml:"push_port"       toml:"push_port"`
	PollInterval   string `yaml:"poll_interval"   toml:"poll_interval"`
	ReconnectDelay string `yaml:"reconnect_delay" toml:"reconnect_delay"`
	HTTPTimeout    string `yaml:"http_timeout"    toml:"http_timeout"`
	CacheSize      int    `yaml:"cache_size"      toml:"cache_size"`
	ExportLimit    int    `yaml:"export_limit"    toml:"export_limit"`
	RefreshOnPush  *bool  `yaml:"refresh_on_push" toml:"refresh_on_push"`
	LogLevel       string `yaml:"log_level"       toml:"log_level"`
	FaultDB        string `yaml:"fault_db"        toml:"fault_db"`
}

// Load resolves settings for paths. A missing config file is not an error.
func Load(paths *Paths) (Config, error) {
	cfg := Default()
	cfg.FaultDB = paths.FaultDBPath

	if err := applyFile(&cfg, paths.ConfigPath); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyFile merges the config file at path, picking the decoder by extension.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		err = yaml.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return merge(cfg, fc, path)
}

func merge(cfg *Config, fc fileConfig, source string) error {
	if fc.BaseURL != "" {
		cfg.BaseURL = fc.BaseURL
	}
	if fc.PushURL != "" {
		cfg.PushURL = fc.PushURL
	}
	if fc.PushPort != 0 {
		cfg.PushPort = fc.PushPort
	}
	if fc.CacheSize != 0 {
		cfg.CacheSize = fc.CacheSize
	}
	if fc.ExportLimit != 0 {
		cfg.ExportLimit = fc.ExportLimit
	}
	if fc.RefreshOnPush != nil {
		cfg.RefreshOnPush = *fc.RefreshOnPush
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.FaultDB != "" {
		cfg.FaultDB = fc.FaultDB
	}
	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"poll_interval", fc.PollInterval, &cfg.PollInterval},
		{"reconnect_delay", fc.ReconnectDelay, &cfg.ReconnectDelay},
		{"http_timeout", fc.HTTPTimeout, &cfg.HTTPTimeout},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", source, d.key, err)
		}
		*d.dst = v
	}
	return nil
}

// applyEnv overlays ALERTHUB_* variables.
func applyEnv(cfg *Config) error {
	cfg.BaseURL = envOrDefault("ALERTHUB_BASE_URL", cfg.BaseURL)
	cfg.PushURL = envOrDefault("ALERTHUB_PUSH_URL", cfg.PushURL)
	cfg.LogLevel = envOrDefault("ALERTHUB_LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.PushPort, err = intEnv("ALERTHUB_PUSH_PORT", cfg.PushPort); err != nil {
		return err
	}
	if cfg.CacheSize, err = intEnv("ALERTHUB_CACHE_SIZE", cfg.CacheSize); err != nil {
		return err
	}
	if cfg.PollInterval, err = durationEnv("ALERTHUB_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return err
	}
	if cfg.ReconnectDelay, err = durationEnv("ALERTHUB_RECONNECT_DELAY", cfg.ReconnectDelay); err != nil {
		return err
	}
	if cfg.HTTPTimeout, err = durationEnv("ALERTHUB_HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return err
	}
	if cfg.RefreshOnPush, err = boolEnv("ALERTHUB_REFRESH_ON_PUSH", cfg.RefreshOnPush); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base url %q: must be an http(s) URL", c.BaseURL)
	}
	if c.PushPort <= 0 || c.PushPort > 65535 {
		return fmt.Errorf("push port %d out of range", c.PushPort)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive, got %s", c.ReconnectDelay)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
	}
	if c.ExportLimit <= 0 {
		return fmt.Errorf("export limit must be positive, got %d", c.ExportLimit)
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, raw, err)
	}
	return value, nil
}

func intEnv(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, raw, err)
	}
	return value, nil
}

func boolEnv(name string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", name, raw, err)
	}
	return value, nil
}
