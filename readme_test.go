package main

import (
	"os"
	"strings"
	"testing"
)

func TestREADMEContainsReferencesSection(t *testing.T) {
	content, err := os.ReadFile("README.md")
	if err != nil {
		t.Fatalf("Failed to read README.md: %v", err)
	}

	readmeText := string(content)

	for _, section := range []string{"## Commands", "## Configuration", "## References"} {
		if !strings.Contains(readmeText, section) {
			t.Errorf("README.md missing %s section", section)
		}
	}

	// Every hub endpoint the client talks to must be documented.
	for _, endpoint := range []string{"/api/events", "/api/stats", "/api/config"} {
		if !strings.Contains(readmeText, endpoint) {
			t.Errorf("README.md missing endpoint %s", endpoint)
		}
	}
}

func TestREADMEDocumentsCommandsAndEnvironment(t *testing.T) {
	content, err := os.ReadFile("README.md")
	if err != nil {
		t.Fatalf("Failed to read README.md: %v", err)
	}
	readmeText := string(content)

	commands := []string{"watch", "send", "seed", "import", "export", "events", "emails", "stats", "faults", "probe", "dash"}
	for _, name := range commands {
		if !strings.Contains(readmeText, "`"+name+"`") {
			t.Errorf("README.md missing command %q", name)
		}
	}

	vars := []string{
		"ALERTHUB_HOME", "ALERTHUB_CONFIG", "ALERTHUB_FAULT_DB", "ALERTHUB_BASE_URL",
		"ALERTHUB_PUSH_URL", "ALERTHUB_PUSH_PORT", "ALERTHUB_POLL_INTERVAL",
		"ALERTHUB_RECONNECT_DELAY", "ALERTHUB_HTTP_TIMEOUT", "ALERTHUB_CACHE_SIZE",
		"ALERTHUB_REFRESH_ON_PUSH", "ALERTHUB_LOG_LEVEL",
	}
	for _, v := range vars {
		if !strings.Contains(readmeText, v) {
			t.Errorf("README.md missing environment variable %s", v)
		}
	}
}
