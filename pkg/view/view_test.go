package view

import (
	"reflect"
	"testing"

	"alerthub/pkg/protocol"
)

var sample = []protocol.Event{ //nolint:gochecknoglobals // test fixture
	{ID: 4, Source: "firewall-dmz", Severity: protocol.SeverityCritical, Channel: protocol.ChannelHTTP, Message: "Intento de acceso no autorizado"},
	{ID: 3, Source: "switch-planta2", Severity: protocol.SeverityError, Channel: protocol.ChannelTCP, Message: "Pérdida de paquetes"},
	{ID: 2, Source: "router-core", Severity: protocol.SeverityWarning, Channel: protocol.ChannelTCP, Message: "Latencia elevada detectada"},
	{ID: 1, Source: "panel-web", Severity: protocol.SeverityInfo, Message: "Evento manual"},
}

func eventIDs(events []protocol.Event) []int64 {
	out := []int64{}
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestFilterEvents(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"empty query is identity", "", []int64{4, 3, 2, 1}},
		{"message match is case-insensitive", "LATENCIA", []int64{2}},
		{"source match", "router", []int64{2}},
		{"severity match", "critical", []int64{4}},
		{"channel match", "tcp_socket", []int64{3, 2}},
		{"spans field boundary", "manualpanel", []int64{1}},
		{"unicode fold", "PÉRDIDA", []int64{3}},
		{"no match", "zzz", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eventIDs(FilterEvents(sample, tt.query))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FilterEvents(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestFilterEventsIdempotent(t *testing.T) {
	for _, q := range []string{"", "tcp", "Latencia", "e"} {
		once := FilterEvents(sample, q)
		twice := FilterEvents(once, q)
		if !reflect.DeepEqual(eventIDs(once), eventIDs(twice)) {
			t.Errorf("FilterEvents not idempotent for %q: %v vs %v", q, eventIDs(once), eventIDs(twice))
		}
	}
}

func TestFilterEventsEmptyResultIsEmptySlice(t *testing.T) {
	got := FilterEvents(sample, "nothing-matches")
	if got == nil || len(got) != 0 {
		t.Errorf("FilterEvents = %#v, want empty non-nil slice", got)
	}
}

func TestFilterEmailLogs(t *testing.T) {
	logs := []protocol.EmailLogEntry{
		{ID: 3, EventID: 42, Status: protocol.EmailFailed, Recipient: "ops@example.com", Detail: "timeout"},
		{ID: 2, EventID: 7, Status: protocol.EmailSkipped, Detail: "SMTP no configurado"},
		{ID: 1, EventID: 4, Status: protocol.EmailSent, Recipient: "noc@example.com", Detail: "Enviado correctamente"},
	}
	tests := []struct {
		query string
		want  []int64
	}{
		{"", []int64{3, 2, 1}},
		{"smtp", []int64{2}},
		{"42", []int64{3}},
		{"EXAMPLE.COM", []int64{3, 1}},
		{"sent", []int64{1}},
	}
	for _, tt := range tests {
		var got []int64
		for _, l := range FilterEmailLogs(logs, tt.query) {
			got = append(got, l.ID)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FilterEmailLogs(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestRecent(t *testing.T) {
	if got := Recent(sample, 2); len(got) != 2 || got[0].ID != 4 {
		t.Errorf("Recent(2) = %v", eventIDs(got))
	}
	if got := Recent(sample, RecentCount); len(got) != 4 {
		t.Errorf("Recent(5) over 4 items = %d items, want 4", len(got))
	}
	if got := Recent(sample, -1); len(got) != 0 {
		t.Errorf("Recent(-1) = %d items, want 0", len(got))
	}
}

func TestKPIsAfterCriticalEvent(t *testing.T) {
	stats := protocol.Stats{
		TotalEvents: 1,
		Severity:    map[protocol.Severity]int{protocol.SeverityCritical: 1},
		Email:       protocol.EmailCounts{Fail: 1},
	}.Normalize()

	k := ComputeKPIs(stats)
	if k.Critical != 1 || k.Total != 1 {
		t.Errorf("KPIs = %+v, want critical 1 total 1", k)
	}
	if k.Info != 0 || k.Warning != 0 || k.Error != 0 {
		t.Errorf("KPIs = %+v, want other severities 0", k)
	}
	if got := k.EmailRatio(); got != "0 / 1" {
		t.Errorf("EmailRatio = %q, want %q", got, "0 / 1")
	}
}

func TestAudit(t *testing.T) {
	stats := protocol.Stats{
		Severity: map[protocol.Severity]int{protocol.SeverityWarning: 3},
		Channels: map[protocol.Channel]int{protocol.ChannelTCP: 12, protocol.ChannelHTTP: 5},
		Email:    protocol.EmailCounts{OK: 2, Fail: 1},
	}.Normalize()

	cards := Audit(stats)
	if len(cards) != 8 {
		t.Fatalf("len(Audit) = %d, want 8", len(cards))
	}
	want := map[string]int{"Warning": 3, "TCP": 12, "HTTP": 5, "Email OK": 2, "Email Fail": 1, "Critical": 0}
	for _, c := range cards {
		if v, ok := want[c.Label]; ok && c.Value != v {
			t.Errorf("card %q = %d, want %d", c.Label, c.Value, v)
		}
	}
}

func TestChannelLabel(t *testing.T) {
	if ChannelLabel(protocol.ChannelTCP) != "TCP" || ChannelLabel(protocol.ChannelHTTP) != "HTTP" || ChannelLabel("") != "" {
		t.Error("unexpected channel labels")
	}
}
