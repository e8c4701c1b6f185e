package config

import (
	"fmt"
	"os"
	"path/filepath"

	"alerthub/pkg/protocol"
)

// Paths holds all resolved alerthub state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home        string // ~/.alerthub or ALERTHUB_HOME
	ConfigPath  string // config.yaml or ALERTHUB_CONFIG
	FaultDBPath string // faults.db or ALERTHUB_FAULT_DB
	DashLogPath string // dash.log
}

// ResolvePaths returns all alerthub paths, respecting env var overrides.
// Environment variables:
//   - ALERTHUB_HOME: base directory for all state (default: ~/.alerthub)
//   - ALERTHUB_CONFIG: config file, .yaml or .toml (default: $ALERTHUB_HOME/config.yaml)
//   - ALERTHUB_FAULT_DB: fault journal (default: $ALERTHUB_HOME/faults.db)
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	return &Paths{
		Home:        home,
		ConfigPath:  resolvePathWithEnv("ALERTHUB_CONFIG", home, protocol.ConfigFile),
		FaultDBPath: resolvePathWithEnv("ALERTHUB_FAULT_DB", home, protocol.FaultDBFile),
		DashLogPath: filepath.Join(home, "dash.log"),
	}, nil
}

// resolveHome returns ALERTHUB_HOME or ~/.alerthub.
func resolveHome() (string, error) {
	if v := os.Getenv("ALERTHUB_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.HomeDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
