// Package hubclient is the REST boundary to the alert hub backend.
package hubclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"alerthub/internal/version"
	"alerthub/pkg/protocol"
)

// maxPayloadEcho bounds the raw body kept on a DecodeError.
const maxPayloadEcho = 256

// HubConfig is the body of GET /api/config.
type HubConfig struct {
	WSURL    string `json:"ws_url"`
	TCPHost  string `json:"tcp_host"`
	TCPPort  int    `json:"tcp_port"`
	HTTPPort int    `json:"http_port"`
}

// Client talks to the hub over HTTP. It never retries; recovery belongs to the caller's next cycle.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client for baseURL. A nil httpClient gets protocol.DefaultHTTPTimeout.
func New(baseURL string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = protocol.DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: protocol.DefaultHTTPTimeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// BaseURL returns the normalized REST endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchEvents reads up to limit events, newest first, plus the recent email log.
func (c *Client) FetchEvents(ctx context.Context, limit int) (protocol.EventsPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out protocol.EventsPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return protocol.EventsPage{}, err
	}
	if out.Items == nil {
		out.Items = []protocol.Event{}
	}
	if out.EmailLogs == nil {
		out.EmailLogs = []protocol.EmailLogEntry{}
	}
	return out, nil
}

// FetchStats reads the aggregate counters.
func (c *Client) FetchStats(ctx context.Context) (protocol.Stats, error) {
	var out protocol.Stats
	if err := c.doJSON(ctx, http.MethodGet, "/api/stats", nil, &out); err != nil {
		return protocol.Stats{}, err
	}
	return out.Normalize(), nil
}

// FetchConfig reads the hub's advertised endpoints.
func (c *Client) FetchConfig(ctx context.Context) (HubConfig, error) {
	var out HubConfig
	err := c.doJSON(ctx, http.MethodGet, "/api/config", nil, &out)
	return out, err
}

// CreateEvent posts one event. Any non-2xx answer is a *protocol.ValidationError.
// The hub answers with either the bare event or {"ok":true,"event":{...}}.
func (c *Client) CreateEvent(ctx context.Context, req protocol.CreateEventRequest) (protocol.Event, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, http.MethodPost, "/api/events", req, &raw)
	if err != nil {
		var se *protocol.StatusError
		if errors.As(err, &se) {
			return protocol.Event{}, &protocol.ValidationError{StatusCode: se.StatusCode, Message: se.Body}
		}
		return protocol.Event{}, err
	}
	return decodeCreated(raw)
}

func decodeCreated(raw json.RawMessage) (protocol.Event, error) {
	var wrapped struct {
		Event *protocol.Event `json:"event"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Event != nil {
		return *wrapped.Event, nil
	}
	var ev protocol.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return protocol.Event{}, &protocol.DecodeError{Op: "POST /api/events", Payload: clip(raw), Err: err}
	}
	if ev.ID == 0 {
		return protocol.Event{}, &protocol.DecodeError{
			Op:      "POST /api/events",
			Payload: clip(raw),
			Err:     errors.New("response carries no event id"),
		}
	}
	return ev, nil
}

func (c *Client) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	op := method + " " + strings.SplitN(requestPath, "?", 2)[0]

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Correlation-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &protocol.TransportError{Op: op, Err: err}
	}
	payload, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return &protocol.TransportError{Op: op, Err: readErr}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &protocol.StatusError{Op: op, StatusCode: resp.StatusCode, Body: errorMessage(payload)}
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &protocol.DecodeError{Op: op, Payload: clip(payload), Err: err}
	}
	return nil
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from an error body.
func errorMessage(payload []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(payload, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(clip(payload))
}

func clip(b []byte) string {
	if len(b) > maxPayloadEcho {
		return string(b[:maxPayloadEcho])
	}
	return string(b)
}
