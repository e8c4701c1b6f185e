// Package hubtest is an in-process alert hub: REST reads and writes, a
// websocket push channel and a TCP line ingestion port, backed by memory.
//
// Integration tests start one with Start; `alerthub demo-hub` serves one on
// fixed ports for local experiments.
package hubtest

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"alerthub/pkg/hubclient"
	"alerthub/pkg/protocol"
)

const (
	maxLimit     = 200
	emailLogSize = 40
	maxSource    = 80
)

// Hub holds the fake backend's state.
type Hub struct {
	log zerolog.Logger
	now func() time.Time

	mu           sync.Mutex
	events       []protocol.Event // ascending id
	emails       []protocol.EmailLogEntry
	nextEventID  int64
	nextEmailID  int64
	tcpMessages  int
	httpMessages int
	emailOK      int
	emailFail    int
	reject       func(protocol.CreateEventRequest) bool
	readsDown    bool
	endpoints    hubclient.HubConfig

	clientsMu sync.Mutex
	clients   map[*pushClient]struct{}
}

type pushClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *pushClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// NewHub returns an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:     log,
		now:     time.Now,
		clients: make(map[*pushClient]struct{}),
	}
}

// SetEndpoints sets what GET /api/config advertises.
func (h *Hub) SetEndpoints(cfg hubclient.HubConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpoints = cfg
}

// RejectCreates makes POST /api/events answer 400 whenever fn returns true. nil accepts all.
func (h *Hub) RejectCreates(fn func(protocol.CreateEventRequest) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reject = fn
}

// SetReadsDown makes both read endpoints answer 503.
func (h *Hub) SetReadsDown(down bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readsDown = down
}

// Events returns all stored events, newest first.
func (h *Hub) Events() []protocol.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]protocol.Event, 0, len(h.events))
	for i := len(h.events) - 1; i >= 0; i-- {
		out = append(out, h.events[i])
	}
	return out
}

// Register stores an event, updates counters, broadcasts it and, for error and
// critical events, logs a skipped notification.
func (h *Hub) Register(req protocol.CreateEventRequest, channel protocol.Channel) protocol.Event {
	source := req.Source
	if len(source) > maxSource {
		source = source[:maxSource]
	}
	sev, ok := protocol.ParseSeverity(string(req.Severity))
	if !ok {
		sev = protocol.SeverityInfo
	}

	h.mu.Lock()
	h.nextEventID++
	ev := protocol.Event{
		ID:        h.nextEventID,
		CreatedAt: h.now().Format("2006-01-02 15:04:05"),
		Source:    source,
		Severity:  sev,
		Channel:   channel,
		Message:   protocol.TruncateMessage(req.Message),
	}
	h.events = append(h.events, ev)
	switch channel {
	case protocol.ChannelTCP:
		h.tcpMessages++
	case protocol.ChannelHTTP:
		h.httpMessages++
	}
	if sev == protocol.SeverityError || sev == protocol.SeverityCritical {
		h.nextEmailID++
		h.emails = append(h.emails, protocol.EmailLogEntry{
			ID:        h.nextEmailID,
			EventID:   ev.ID,
			CreatedAt: ev.CreatedAt,
			Status:    protocol.EmailSkipped,
			Detail:    "SMTP no configurado",
		})
		h.emailFail++
	}
	h.mu.Unlock()

	frame, _ := json.Marshal(map[string]any{"type": protocol.FrameEvent, "data": ev})
	h.Broadcast(frame)
	return ev
}

// Broadcast sends a raw text frame to every push client.
func (h *Hub) Broadcast(frame []byte) {
	h.clientsMu.Lock()
	clients := make([]*pushClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.Unlock()

	for _, c := range clients {
		if err := c.write(frame); err != nil {
			h.dropClient(c)
		}
	}
}

// PushClients returns the number of connected push clients.
func (h *Hub) PushClients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// DropPushClients closes every push connection, forcing clients to reconnect.
func (h *Hub) DropPushClients() {
	h.clientsMu.Lock()
	clients := make([]*pushClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.Unlock()
	for _, c := range clients {
		h.dropClient(c)
	}
}

func (h *Hub) dropClient(c *pushClient) {
	h.clientsMu.Lock()
	delete(h.clients, c)
	h.clientsMu.Unlock()
	_ = c.conn.Close()
}

// Router serves the REST API.
func (h *Hub) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Get("/events", h.handleListEvents)
		r.Post("/events", h.handleCreateEvent)
		r.Get("/stats", h.handleStats)
		r.Get("/config", h.handleConfig)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Hub) readsAvailable(w http.ResponseWriter) bool {
	h.mu.Lock()
	down := h.readsDown
	h.mu.Unlock()
	if down {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "unavailable"})
		return false
	}
	return true
}

func (h *Hub) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if !h.readsAvailable(w) {
		return
	}
	limit := protocol.DefaultCacheSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid limit"})
			return
		}
		limit = n
	}
	limit = max(1, min(limit, maxLimit))

	h.mu.Lock()
	items := make([]protocol.Event, 0, limit)
	for i := len(h.events) - 1; i >= 0 && len(items) < limit; i-- {
		items = append(items, h.events[i])
	}
	logs := make([]protocol.EmailLogEntry, 0, emailLogSize)
	for i := len(h.emails) - 1; i >= 0 && len(logs) < emailLogSize; i-- {
		logs = append(logs, h.emails[i])
	}
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "items": items, "email_logs": logs})
}

func (h *Hub) handleStats(w http.ResponseWriter, _ *http.Request) {
	if !h.readsAvailable(w) {
		return
	}
	h.mu.Lock()
	sev := map[protocol.Severity]int{}
	for _, known := range protocol.Severities {
		sev[known] = 0
	}
	for _, ev := range h.events {
		sev[ev.Severity]++
	}
	stats := protocol.Stats{
		TotalEvents: len(h.events),
		Severity:    sev,
		Channels: map[protocol.Channel]int{
			protocol.ChannelTCP:  h.tcpMessages,
			protocol.ChannelHTTP: h.httpMessages,
		},
		Email: protocol.EmailCounts{OK: h.emailOK, Fail: h.emailFail},
	}
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, stats)
}

func (h *Hub) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		payload = map[string]any{}
	}
	req := protocol.CreateEventRequest{
		Source:   stringField(payload, "source", protocol.DefaultSource),
		Severity: protocol.Severity(stringField(payload, "severity", string(protocol.SeverityInfo))),
		Message:  stringField(payload, "message", protocol.DefaultMessage),
	}

	h.mu.Lock()
	reject := h.reject
	h.mu.Unlock()
	if reject != nil && reject(req) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "rejected"})
		return
	}

	ev := h.Register(req, protocol.ChannelHTTP)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "event": ev})
}

func stringField(m map[string]any, key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func (h *Hub) handleConfig(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	cfg := h.endpoints
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"ws_url":    cfg.WSURL,
		"tcp_host":  cfg.TCPHost,
		"tcp_port":  cfg.TCPPort,
		"http_port": cfg.HTTPPort,
	})
}

var upgrader = websocket.Upgrader{ //nolint:gochecknoglobals // stateless
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PushHandler serves the websocket push channel on any path.
func (h *Hub) PushHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Error().Err(err).Msg("push upgrade failed")
			return
		}
		c := &pushClient{conn: conn}
		h.clientsMu.Lock()
		h.clients[c] = struct{}{}
		h.clientsMu.Unlock()

		hello, _ := json.Marshal(map[string]any{
			"type":      protocol.FrameHello,
			"message":   "Conectado a Network Alert Hub",
			"timestamp": h.now().Format("2006-01-02 15:04:05"),
		})
		if err := c.write(hello); err != nil {
			h.dropClient(c)
			return
		}

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				h.dropClient(c)
				return
			}
			if string(msg) == "ping" {
				pong, _ := json.Marshal(map[string]any{"type": protocol.FramePong, "ts": float64(h.now().UnixNano()) / 1e9})
				_ = c.write(pong)
			}
		}
	})
}

// ServeTCP accepts newline-delimited JSON events on ln until it is closed.
func (h *Hub) ServeTCP(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go h.handleTCP(conn)
	}
}

func (h *Hub) handleTCP(conn net.Conn) {
	defer conn.Close()
	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes('\n')
		if len(strings.TrimSpace(string(line))) > 0 {
			h.handleTCPLine(conn, line, host)
		}
		if err != nil {
			return
		}
	}
}

func (h *Hub) handleTCPLine(conn net.Conn, line []byte, host string) {
	var payload map[string]any
	if err := json.Unmarshal(line, &payload); err != nil {
		_, _ = conn.Write([]byte(`{"ok":false,"error":"invalid_json"}` + "\n"))
		return
	}
	ev := h.Register(protocol.CreateEventRequest{
		Source:   stringField(payload, "source", host),
		Severity: protocol.Severity(stringField(payload, "severity", string(protocol.SeverityInfo))),
		Message:  stringField(payload, "message", "(sin mensaje)"),
	}, protocol.ChannelTCP)
	ack, _ := json.Marshal(hubclient.TCPAck{OK: true, EventID: ev.ID})
	_, _ = conn.Write(append(ack, '\n'))
}
