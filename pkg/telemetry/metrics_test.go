package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"alerthub/pkg/faults"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestFaultCounters(t *testing.T) {
	m := New()
	var r faults.Reporter = m
	r.Report(faults.Fault{Kind: faults.KindDecode, Component: faults.ComponentPush})
	r.Report(faults.Fault{Kind: faults.KindDecode, Component: faults.ComponentPush})
	r.Report(faults.Fault{Kind: faults.KindTransport, Component: faults.ComponentSnapshot})

	out := scrape(t, m)
	for _, want := range []string{
		`alerthub_faults_total{component="push",kind="decode"} 2`,
		`alerthub_faults_total{component="snapshot",kind="transport"} 1`,
		`alerthub_faults_total{component="",kind="partial_batch"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q:\n%s", want, out)
		}
	}
}

func TestPushAndSyncCounters(t *testing.T) {
	m := New()
	m.PushAttempt()
	m.PushAttempt()
	m.PushConnected(true)
	m.PushEvent(true)
	m.PushEvent(false)
	m.Sync(nil)
	m.Sync(errors.New("down"))
	m.CacheSize(42)
	m.Created("batch", 4)
	m.Created("single", 0)

	out := scrape(t, m)
	for _, want := range []string{
		"alerthub_push_attempts_total 2",
		"alerthub_push_connected 1",
		`alerthub_push_events_total{outcome="added"} 1`,
		`alerthub_push_events_total{outcome="duplicate"} 1`,
		`alerthub_snapshot_syncs_total{result="ok"} 1`,
		`alerthub_snapshot_syncs_total{result="error"} 1`,
		"alerthub_cache_events 42",
		`alerthub_command_events_created_total{kind="batch"} 4`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
	if strings.Contains(out, `kind="single"`) {
		t.Error("zero creations should not create a series")
	}

	m.PushConnected(false)
	if out := scrape(t, m); !strings.Contains(out, "alerthub_push_connected 0") {
		t.Error("connected gauge should drop to 0 after close")
	}
}
