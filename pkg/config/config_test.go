package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"alerthub/pkg/protocol"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ALERTHUB_HOME", "ALERTHUB_CONFIG", "ALERTHUB_FAULT_DB", "ALERTHUB_BASE_URL",
		"ALERTHUB_PUSH_URL", "ALERTHUB_PUSH_PORT", "ALERTHUB_POLL_INTERVAL",
		"ALERTHUB_RECONNECT_DELAY", "ALERTHUB_HTTP_TIMEOUT", "ALERTHUB_CACHE_SIZE",
		"ALERTHUB_LOG_LEVEL", "ALERTHUB_REFRESH_ON_PUSH",
	} {
		t.Setenv(k, "")
	}
}

func TestResolvePaths(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("ALERTHUB_HOME", home)

	p, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if p.ConfigPath != filepath.Join(home, "config.yaml") {
		t.Errorf("ConfigPath = %q", p.ConfigPath)
	}
	if p.FaultDBPath != filepath.Join(home, "faults.db") {
		t.Errorf("FaultDBPath = %q", p.FaultDBPath)
	}

	t.Setenv("ALERTHUB_FAULT_DB", "/tmp/other.db")
	p, _ = ResolvePaths()
	if p.FaultDBPath != "/tmp/other.db" {
		t.Errorf("FaultDBPath override = %q, want /tmp/other.db", p.FaultDBPath)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("ALERTHUB_HOME", home)
	p, _ := ResolvePaths()

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != protocol.DefaultBaseURL || cfg.PushPort != 8767 {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
	if cfg.PollInterval != 4*time.Second || cfg.ReconnectDelay != 1500*time.Millisecond {
		t.Errorf("timings = %v / %v", cfg.PollInterval, cfg.ReconnectDelay)
	}
	if cfg.CacheSize != 80 || cfg.ExportLimit != 200 {
		t.Errorf("sizes = %d / %d", cfg.CacheSize, cfg.ExportLimit)
	}
	if cfg.FaultDB != p.FaultDBPath {
		t.Errorf("FaultDB = %q, want %q", cfg.FaultDB, p.FaultDBPath)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("ALERTHUB_HOME", home)
	yml := `base_url: http://hub.lan:5100
push_port: 9000
poll_interval: 2s
reconnect_delay: 1200ms
cache_size: 40
refresh_on_push: true
`
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	p, _ := ResolvePaths()
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://hub.lan:5100" || cfg.PushPort != 9000 || cfg.CacheSize != 40 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PollInterval != 2*time.Second || cfg.ReconnectDelay != 1200*time.Millisecond {
		t.Errorf("timings = %v / %v", cfg.PollInterval, cfg.ReconnectDelay)
	}
	if !cfg.RefreshOnPush {
		t.Error("RefreshOnPush = false, want true")
	}
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	path := filepath.Join(home, "alerthub.toml")
	t.Setenv("ALERTHUB_HOME", home)
	t.Setenv("ALERTHUB_CONFIG", path)
	tml := `base_url = "https://hub.example.com"
push_url = "wss://push.example.com/live"
http_timeout = "3s"
`
	if err := os.WriteFile(path, []byte(tml), 0o644); err != nil {
		t.Fatal(err)
	}
	p, _ := ResolvePaths()
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://hub.example.com" || cfg.PushURL != "wss://push.example.com/live" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("HTTPTimeout = %v, want 3s", cfg.HTTPTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("ALERTHUB_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("cache_size: 40\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ALERTHUB_CACHE_SIZE", "25")
	t.Setenv("ALERTHUB_RECONNECT_DELAY", "1300ms")

	p, _ := ResolvePaths()
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheSize != 25 {
		t.Errorf("CacheSize = %d, want env value 25", cfg.CacheSize)
	}
	if cfg.ReconnectDelay != 1300*time.Millisecond {
		t.Errorf("ReconnectDelay = %v", cfg.ReconnectDelay)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{"bad yaml", "base_url: [", nil, "parse config"},
		{"bad duration in file", "poll_interval: soon\n", nil, "poll_interval"},
		{"bad env int", "", map[string]string{"ALERTHUB_PUSH_PORT": "eighty"}, "ALERTHUB_PUSH_PORT"},
		{"bad env duration", "", map[string]string{"ALERTHUB_POLL_INTERVAL": "4"}, "ALERTHUB_POLL_INTERVAL"},
		{"non-http base", "base_url: ftp://hub\n", nil, "base url"},
		{"zero cache", "", map[string]string{"ALERTHUB_CACHE_SIZE": "0"}, "cache size"},
		{"negative delay", "", map[string]string{"ALERTHUB_RECONNECT_DELAY": "-1s"}, "reconnect delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			home := t.TempDir()
			t.Setenv("ALERTHUB_HOME", home)
			if tt.file != "" {
				if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(tt.file), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			p, _ := ResolvePaths()
			_, err := Load(p)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
