// Package live keeps the hub's push channel connected and feeds pushed events
// into the reconciler.
//
// The connection is a three-state machine (closed, connecting, open). Entering
// closed always schedules another attempt after a fixed delay; there is no
// backoff and no attempt cap. Only cancelling the context passed to Run stops it.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"alerthub/pkg/faults"
	"alerthub/pkg/protocol"
)

// Ingester accepts pushed events.
type Ingester interface {
	Ingest(ev protocol.Event) bool
}

// Sleeper waits d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Options configures a Manager.
type Options struct {
	URL            string
	Dialer         Dialer        // defaults to WebsocketDialer{}
	ReconnectDelay time.Duration // defaults to protocol.DefaultReconnectDelay
	Sleep          Sleeper       // defaults to a timer wait
	Reporter       faults.Reporter
	Logger         zerolog.Logger

	// OnEvent runs after every actionable frame; added is false for duplicates.
	OnEvent func(ev protocol.Event, added bool)
}

// Manager owns the push channel lifecycle.
type Manager struct {
	url      string
	dialer   Dialer
	delay    time.Duration
	sleep    Sleeper
	sink     Ingester
	reporter faults.Reporter
	log      zerolog.Logger
	onEvent  func(protocol.Event, bool)

	mu        sync.Mutex
	state     State
	observers []func(from, to State)

	attempts atomic.Int64
	frames   atomic.Int64
	dropped  atomic.Int64
}

// New returns a Manager feeding sink. It starts in StateClosed; call Run.
func New(sink Ingester, opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = protocol.DefaultReconnectDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Reporter == nil {
		opts.Reporter = faults.Discard
	}
	return &Manager{
		url:      opts.URL,
		dialer:   opts.Dialer,
		delay:    opts.ReconnectDelay,
		sleep:    opts.Sleep,
		sink:     sink,
		reporter: opts.Reporter,
		log:      opts.Logger,
		onEvent:  opts.OnEvent,
		state:    StateClosed,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers fn to run on every transition. fn must not block.
func (m *Manager) OnStateChange(fn func(from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Attempts returns how many dials have been started.
func (m *Manager) Attempts() int64 { return m.attempts.Load() }

// Frames returns how many frames have been read.
func (m *Manager) Frames() int64 { return m.frames.Load() }

// Dropped returns how many frames were discarded as malformed.
func (m *Manager) Dropped() int64 { return m.dropped.Load() }

// URL returns the push endpoint.
func (m *Manager) URL() string { return m.url }

// Run connects, reads and reconnects until ctx is done. It always returns ctx.Err().
func (m *Manager) Run(ctx context.Context) error {
	m.log.Info().Str("url", m.url).Dur("reconnect_delay", m.delay).Msg("push channel starting")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.connectAndRead(ctx)
		if err := m.sleep(ctx, m.delay); err != nil {
			return ctx.Err()
		}
	}
}

// connectAndRead runs one closed -> connecting -> (open ->) closed cycle.
func (m *Manager) connectAndRead(ctx context.Context) {
	m.transition(StateConnecting)
	m.attempts.Add(1)

	conn, err := m.dialer.Dial(ctx, m.url)
	if err != nil {
		m.transition(StateClosed)
		if ctx.Err() == nil {
			m.reporter.Report(faults.FromError(faults.ComponentPush, &protocol.TransportError{Op: "dial push", Err: err}))
		}
		return
	}
	m.transition(StateOpen)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		data, err := conn.ReadFrame()
		if err != nil {
			_ = conn.Close()
			m.transition(StateClosed)
			if ctx.Err() == nil {
				m.reporter.Report(faults.FromError(faults.ComponentPush, &protocol.TransportError{Op: "read push", Err: err}))
			}
			return
		}
		m.frames.Add(1)
		m.handleFrame(data)
	}
}

// handleFrame decodes one frame. Malformed frames are dropped and reported.
func (m *Manager) handleFrame(data []byte) {
	ev, ok, err := DecodeFrame(data)
	if err != nil {
		m.dropped.Add(1)
		m.reporter.Report(faults.FromError(faults.ComponentPush, err))
		return
	}
	if !ok {
		return
	}
	added := m.sink.Ingest(ev)
	m.log.Debug().Int64("id", ev.ID).Bool("added", added).Msg("push event")
	if m.onEvent != nil {
		m.onEvent(ev, added)
	}
}

// DecodeFrame parses a push frame. ok is false for frames that are well formed
// but not actionable (other types, null data).
func DecodeFrame(data []byte) (protocol.Event, bool, error) {
	var frame protocol.PushFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return protocol.Event{}, false, &protocol.DecodeError{Op: "push frame", Payload: clip(data), Err: err}
	}
	if frame.Type != protocol.FrameEvent {
		return protocol.Event{}, false, nil
	}
	if len(frame.Data) == 0 || string(frame.Data) == "null" {
		return protocol.Event{}, false, nil
	}
	var ev protocol.Event
	if err := json.Unmarshal(frame.Data, &ev); err != nil {
		return protocol.Event{}, false, &protocol.DecodeError{Op: "push event", Payload: clip(data), Err: err}
	}
	if ev.ID == 0 {
		return protocol.Event{}, false, &protocol.DecodeError{Op: "push event", Payload: clip(data), Err: errors.New("event has no id")}
	}
	return ev, true, nil
}

func (m *Manager) transition(to State) {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return
	}
	if !canTransition(from, to) {
		m.mu.Unlock()
		m.log.Error().Stringer("from", from).Stringer("to", to).Msg("invalid push state transition")
		return
	}
	m.state = to
	observers := make([]func(from, to State), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	m.log.Debug().Stringer("from", from).Stringer("to", to).Msg("push state")
	for _, fn := range observers {
		fn(from, to)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clip(b []byte) string {
	const maxEcho = 256
	if len(b) > maxEcho {
		return string(b[:maxEcho])
	}
	return string(b)
}
