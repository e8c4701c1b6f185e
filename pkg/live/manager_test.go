package live

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"alerthub/pkg/cache"
	"alerthub/pkg/faults"
	"alerthub/pkg/protocol"
)

// scriptConn replays frames then fails with err.
type scriptConn struct {
	frames [][]byte
	err    error
	closed chan struct{}
	once   sync.Once
}

func newScriptConn(err error, frames ...string) *scriptConn {
	c := &scriptConn{err: err, closed: make(chan struct{})}
	for _, f := range frames {
		c.frames = append(c.frames, []byte(f))
	}
	return c
}

func (c *scriptConn) ReadFrame() ([]byte, error) {
	if len(c.frames) > 0 {
		f := c.frames[0]
		c.frames = c.frames[1:]
		return f, nil
	}
	if c.err != nil {
		return nil, c.err
	}
	<-c.closed
	return nil, io.EOF
}

func (c *scriptConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// scriptDialer hands out conns in order; nil entries fail the dial.
type scriptDialer struct {
	mu    sync.Mutex
	conns []Conn
	urls  []string
}

func (d *scriptDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	if c == nil {
		return nil, errors.New("connection refused")
	}
	return c, nil
}

// countingSleeper cancels after n waits and records every delay.
func countingSleeper(cancel context.CancelFunc, n int, delays *[]time.Duration) Sleeper {
	var mu sync.Mutex
	return func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*delays = append(*delays, d)
		done := len(*delays) >= n
		mu.Unlock()
		if done {
			cancel()
			return context.Canceled
		}
		return nil
	}
}

func TestReconnectsForeverWithFixedDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delays []time.Duration
	d := &scriptDialer{}
	m := New(cache.New(80), Options{
		URL:            "ws://hub:8767",
		Dialer:         d,
		ReconnectDelay: 1500 * time.Millisecond,
		Sleep:          countingSleeper(cancel, 50, &delays),
		Logger:         zerolog.Nop(),
	})

	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if m.Attempts() != 50 {
		t.Errorf("Attempts = %d, want 50", m.Attempts())
	}
	for i, got := range delays {
		if got != 1500*time.Millisecond {
			t.Fatalf("delay[%d] = %v, want fixed 1.5s", i, got)
		}
	}
	if m.State() != StateClosed {
		t.Errorf("State = %v, want closed", m.State())
	}
}

func TestStateTransitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []string
	)
	var delays []time.Duration
	d := &scriptDialer{conns: []Conn{nil, newScriptConn(io.ErrUnexpectedEOF)}}
	m := New(cache.New(80), Options{Dialer: d, Sleep: countingSleeper(cancel, 2, &delays)})
	m.OnStateChange(func(from, to State) {
		mu.Lock()
		got = append(got, from.String()+">"+to.String())
		mu.Unlock()
	})

	_ = m.Run(ctx)

	want := []string{
		"closed>connecting", "connecting>closed",
		"closed>connecting", "connecting>open", "open>closed",
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFramesFeedCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cache.New(80)
	c.ApplySnapshot(protocol.Snapshot{Events: []protocol.Event{{ID: 1, Message: "seed"}}})

	conn := newScriptConn(io.EOF,
		`{"type":"hello","message":"Conectado a Network Alert Hub"}`,
		`{"type":"event","data":{"id":2,"source":"sensor-a","severity":"error","message":"x","channel":"tcp_socket"}}`,
		`{not json`,
		`{"type":"event","data":null}`,
		`{"type":"event","data":{"id":2,"source":"sensor-a","severity":"error","message":"again"}}`,
		`{"type":"event","data":{"source":"no id"}}`,
		`{"type":"pong","ts":1}`,
	)
	rec := faults.NewRecorder(0)
	var (
		mu     sync.Mutex
		events []bool
	)
	var delays []time.Duration
	m := New(c, Options{
		Dialer:   &scriptDialer{conns: []Conn{conn}},
		Sleep:    countingSleeper(cancel, 1, &delays),
		Reporter: rec,
		OnEvent: func(ev protocol.Event, added bool) {
			mu.Lock()
			events = append(events, added)
			mu.Unlock()
		},
	})
	_ = m.Run(ctx)

	got := c.Events()
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
		t.Fatalf("cache = %+v, want ids [2 1]", got)
	}
	if got[0].Message != "x" {
		t.Errorf("duplicate push overwrote event: %q", got[0].Message)
	}
	if m.Frames() != 7 {
		t.Errorf("Frames = %d, want 7", m.Frames())
	}
	if m.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", m.Dropped())
	}
	if n := rec.Count(faults.KindDecode); n != 2 {
		t.Errorf("decode faults = %d, want 2", n)
	}
	if n := rec.Count(faults.KindTransport); n != 1 {
		t.Errorf("transport faults = %d, want 1 (read eof)", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || !events[0] || events[1] {
		t.Errorf("OnEvent added flags = %v, want [true false]", events)
	}
}

func TestMalformedFrameLeavesCacheUnchanged(t *testing.T) {
	c := cache.New(80)
	c.ApplySnapshot(protocol.Snapshot{Events: []protocol.Event{{ID: 5}}})
	before := c.Version()

	m := New(c, Options{})
	m.handleFrame([]byte(`{"type":"event","data":{"id":"nope"}}`))
	m.handleFrame([]byte(`garbage`))

	if c.Version() != before {
		t.Error("malformed frames mutated the cache")
	}
}

func TestRunStopsWhileOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	conn := newScriptConn(nil)
	m := New(cache.New(80), Options{Dialer: &scriptDialer{conns: []Conn{conn}}})

	opened := make(chan struct{})
	m.OnStateChange(func(_, to State) {
		if to == StateOpen {
			close(opened)
		}
	})

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("never opened")
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantOK  bool
		wantErr bool
	}{
		{"event", `{"type":"event","data":{"id":3}}`, true, false},
		{"hello", `{"type":"hello"}`, false, false},
		{"null data", `{"type":"event","data":null}`, false, false},
		{"missing data", `{"type":"event"}`, false, false},
		{"bad json", `{`, false, true},
		{"bad event", `{"type":"event","data":[]}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := DecodeFrame([]byte(tt.in))
			if ok != tt.wantOK || (err != nil) != tt.wantErr {
				t.Errorf("DecodeFrame(%s) = ok %v err %v, want ok %v err %v", tt.in, ok, err, tt.wantOK, tt.wantErr)
			}
		})
	}
}

func TestPushURL(t *testing.T) {
	tests := []struct {
		base, override string
		port           int
		want           string
		wantErr        bool
	}{
		{"http://127.0.0.1:5100", "", 8767, "ws://127.0.0.1:8767", false},
		{"https://hub.example.com", "", 443, "wss://hub.example.com:443", false},
		{"http://[::1]:5100", "", 8767, "ws://[::1]:8767", false},
		{"http://x", "ws://push.example:9000/ws", 8767, "ws://push.example:9000/ws", false},
		{"http://x", "http://nope", 8767, "", true},
		{"not a url", "", 8767, "", true},
	}
	for _, tt := range tests {
		got, err := PushURL(tt.base, tt.port, tt.override)
		if (err != nil) != tt.wantErr {
			t.Errorf("PushURL(%q, %d, %q) err = %v, wantErr %v", tt.base, tt.port, tt.override, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("PushURL(%q, %d, %q) = %q, want %q", tt.base, tt.port, tt.override, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateOpen.String() != "open" || StateConnecting.String() != "connecting" || StateClosed.String() != "closed" {
		t.Error("unexpected State.String values")
	}
	if canTransition(StateOpen, StateConnecting) {
		t.Error("open -> connecting must not be a valid edge")
	}
}

func TestTransitionLogsOnlyInvalidEdges(t *testing.T) {
	var buf bytes.Buffer
	m := New(cache.New(80), Options{Logger: zerolog.New(&buf)})
	calls := 0
	m.OnStateChange(func(from, to State) { calls++ })

	m.transition(StateClosed)
	if buf.Len() != 0 || calls != 0 {
		t.Errorf("same-state transition: log %q, observer calls %d", buf.String(), calls)
	}

	m.transition(StateOpen)
	if !strings.Contains(buf.String(), "invalid push state transition") {
		t.Errorf("closed -> open not logged: %q", buf.String())
	}
	if m.State() != StateClosed || calls != 0 {
		t.Errorf("invalid edge applied: state %v, calls %d", m.State(), calls)
	}
}
