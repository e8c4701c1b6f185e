package protocol

import (
	"encoding/json"
	"strings"
	"time"
)

// Severity is the alert level attached to an Event.
type Severity string

// Severity constants recognized by the hub.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Severities lists the recognized levels from least to most severe.
var Severities = []Severity{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical} //nolint:gochecknoglobals // fixed catalogue

// ParseSeverity folds s and reports whether it is one of the recognized levels.
// Unrecognized input is returned as-is (lowercased); rejecting it is the backend's job.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Severities {
		if sev == known {
			return sev, true
		}
	}
	return sev, false
}

// Next returns the level after s, wrapping from critical back to info.
// Used by input controls that cycle through the levels.
func (s Severity) Next() Severity {
	for i, known := range Severities {
		if s == known {
			return Severities[(i+1)%len(Severities)]
		}
	}
	return SeverityInfo
}

// Channel identifies how an event entered the backend.
type Channel string

// Channel constants. Manually created events carry no channel.
const (
	ChannelTCP  Channel = "tcp_socket"
	ChannelHTTP Channel = "http_api"
)

// EmailStatus is the outcome of a notification attempt.
type EmailStatus string

// EmailStatus constants.
const (
	EmailSent    EmailStatus = "sent"
	EmailSkipped EmailStatus = "skipped"
	EmailFailed  EmailStatus = "failed"
)

// Event is a single network alert. Events are immutable once created.
type Event struct {
	ID        int64    `json:"id"`
	CreatedAt string   `json:"created_at"` // server clock, "2006-01-02 15:04:05"
	Source    string   `json:"source"`
	Severity  Severity `json:"severity"`
	Channel   Channel  `json:"channel,omitempty"`
	Message   string   `json:"message"`
}

// EmailLogEntry records one attempted notification for an Event.
type EmailLogEntry struct {
	ID        int64       `json:"id"`
	EventID   int64       `json:"event_id"`
	CreatedAt string      `json:"created_at"`
	Status    EmailStatus `json:"status"`
	Recipient string      `json:"recipient,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}

// Stats is the aggregate snapshot returned by GET /api/stats.
type Stats struct {
	TotalEvents int              `json:"total_events"`
	Severity    map[Severity]int `json:"severity"`
	Channels    map[Channel]int  `json:"channels"`
	Email       EmailCounts      `json:"email"`
}

// EmailCounts splits notification outcomes into delivered and not delivered.
type EmailCounts struct {
	OK   int `json:"ok"`
	Fail int `json:"fail"`
}

// Normalize guarantees every severity key is present (default 0) and the maps are non-nil.
func (s Stats) Normalize() Stats {
	sev := make(map[Severity]int, len(Severities))
	for _, known := range Severities {
		sev[known] = s.Severity[known]
	}
	for k, v := range s.Severity {
		if _, ok := sev[k]; !ok {
			sev[k] = v
		}
	}
	channels := map[Channel]int{ChannelTCP: 0, ChannelHTTP: 0}
	for k, v := range s.Channels {
		channels[k] = v
	}
	s.Severity = sev
	s.Channels = channels
	return s
}

// EventsPage is the body of GET /api/events.
type EventsPage struct {
	Items     []Event         `json:"items"`
	EmailLogs []EmailLogEntry `json:"email_logs"`
}

// CreateEventRequest is the body of POST /api/events.
type CreateEventRequest struct {
	Source   string   `json:"source"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// PushFrame is one text frame delivered over the push channel.
// Only frames with Type == FrameEvent and non-null Data are actionable.
type PushFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Push frame types sent by the hub.
const (
	FrameEvent = "event"
	FrameHello = "hello"
	FramePong  = "pong"
)

// Snapshot is a full, bounded, server-ordered read of events, email logs and stats.
type Snapshot struct {
	Events    []Event         `json:"events"`
	EmailLogs []EmailLogEntry `json:"email_logs"`
	Stats     Stats           `json:"stats"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// TruncateMessage cuts msg to MaxMessageRunes runes.
func TruncateMessage(msg string) string {
	runes := []rune(msg)
	if len(runes) <= MaxMessageRunes {
		return msg
	}
	return string(runes[:MaxMessageRunes])
}
