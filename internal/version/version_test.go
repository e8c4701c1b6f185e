package version_test

import (
	"strings"
	"testing"

	"alerthub/internal/version"
)

func TestVersionIsSet(t *testing.T) {
	t.Parallel()

	v := version.String()
	if v == "" {
		t.Fatal("version.String() must not be empty")
	}
}

func TestUserAgentCarriesVersion(t *testing.T) {
	t.Parallel()

	ua := version.UserAgent()
	if !strings.HasPrefix(ua, "alerthub/") || !strings.HasSuffix(ua, version.String()) {
		t.Errorf("UserAgent() = %q", ua)
	}
}
