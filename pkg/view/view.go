// Package view derives display projections from cache reads. It holds no state.
package view

import (
	"strconv"
	"strings"

	"alerthub/pkg/protocol"
)

// RecentCount is the size of the dashboard's latest-items tables.
const RecentCount = 5

// FilterEvents keeps events whose message, source, severity and channel,
// concatenated and lowercased, contain the lowercased query.
// An empty query returns events unchanged.
func FilterEvents(events []protocol.Event, query string) []protocol.Event {
	if query == "" {
		return events
	}
	q := strings.ToLower(query)
	out := make([]protocol.Event, 0, len(events))
	for _, ev := range events {
		if strings.Contains(eventHaystack(ev), q) {
			out = append(out, ev)
		}
	}
	return out
}

func eventHaystack(ev protocol.Event) string {
	return strings.ToLower(ev.Message + ev.Source + string(ev.Severity) + string(ev.Channel))
}

// FilterEmailLogs is FilterEvents over status, detail, recipient and event id.
func FilterEmailLogs(logs []protocol.EmailLogEntry, query string) []protocol.EmailLogEntry {
	if query == "" {
		return logs
	}
	q := strings.ToLower(query)
	out := make([]protocol.EmailLogEntry, 0, len(logs))
	for _, l := range logs {
		if strings.Contains(emailHaystack(l), q) {
			out = append(out, l)
		}
	}
	return out
}

func emailHaystack(l protocol.EmailLogEntry) string {
	return strings.ToLower(string(l.Status) + l.Detail + l.Recipient + strconv.FormatInt(l.EventID, 10))
}

// Recent returns at most the first n items, newest first as given.
func Recent[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// KPIs are the dashboard headline numbers.
type KPIs struct {
	Total     int `json:"total"`
	Critical  int `json:"critical"`
	Error     int `json:"error"`
	Warning   int `json:"warning"`
	Info      int `json:"info"`
	EmailOK   int `json:"email_ok"`
	EmailFail int `json:"email_fail"`
}

// ComputeKPIs reads the headline numbers straight from stats.
func ComputeKPIs(stats protocol.Stats) KPIs {
	return KPIs{
		Total:     stats.TotalEvents,
		Critical:  stats.Severity[protocol.SeverityCritical],
		Error:     stats.Severity[protocol.SeverityError],
		Warning:   stats.Severity[protocol.SeverityWarning],
		Info:      stats.Severity[protocol.SeverityInfo],
		EmailOK:   stats.Email.OK,
		EmailFail: stats.Email.Fail,
	}
}

// EmailRatio renders the "ok / fail" KPI.
func (k KPIs) EmailRatio() string {
	return strconv.Itoa(k.EmailOK) + " / " + strconv.Itoa(k.EmailFail)
}

// Card is one cell of the audit grid.
type Card struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	Tone  string `json:"tone"` // info, warning, error, critical, tcp, success
}

// Audit returns the eight audit cards in display order.
func Audit(stats protocol.Stats) []Card {
	return []Card{
		{Label: "Info", Value: stats.Severity[protocol.SeverityInfo], Tone: "info"},
		{Label: "Warning", Value: stats.Severity[protocol.SeverityWarning], Tone: "warning"},
		{Label: "Error", Value: stats.Severity[protocol.SeverityError], Tone: "error"},
		{Label: "Critical", Value: stats.Severity[protocol.SeverityCritical], Tone: "critical"},
		{Label: "TCP", Value: stats.Channels[protocol.ChannelTCP], Tone: "tcp"},
		{Label: "HTTP", Value: stats.Channels[protocol.ChannelHTTP], Tone: "success"},
		{Label: "Email OK", Value: stats.Email.OK, Tone: "success"},
		{Label: "Email Fail", Value: stats.Email.Fail, Tone: "error"},
	}
}

// ChannelLabel is the short badge for a channel. Unknown channels pass through.
func ChannelLabel(ch protocol.Channel) string {
	switch ch {
	case protocol.ChannelTCP:
		return "TCP"
	case protocol.ChannelHTTP:
		return "HTTP"
	default:
		return string(ch)
	}
}
