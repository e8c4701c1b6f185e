// Package session owns one dashboard client's sync state for the life of a process.
//
// A Session wires the REST client, the snapshot poller, the push channel and the
// command dispatcher around a single bounded cache. Construct it with New, call
// Start to begin syncing, and Close on exit.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"alerthub/pkg/cache"
	"alerthub/pkg/command"
	"alerthub/pkg/config"
	"alerthub/pkg/faults"
	"alerthub/pkg/hubclient"
	"alerthub/pkg/live"
	"alerthub/pkg/protocol"
	"alerthub/pkg/snapshot"
	"alerthub/pkg/telemetry"
)

// ErrStarted is returned by Start on a session that is already running.
var ErrStarted = errors.New("session already started")

// Options configures a Session. Only Config is required.
type Options struct {
	ID         string // defaults to a random uuid
	Config     config.Config
	Logger     zerolog.Logger
	Reporter   faults.Reporter    // extra fault sinks, e.g. the journal
	Metrics    *telemetry.Metrics // optional
	Dialer     live.Dialer        // defaults to the websocket dialer
	HTTPClient *http.Client       // defaults to one bounded by Config.HTTPTimeout
	Now        func() time.Time
}

// Session is the process-wide sync state.
type Session struct {
	id       string
	cfg      config.Config
	log      zerolog.Logger
	now      func() time.Time
	metrics  *telemetry.Metrics
	recorder *faults.Recorder
	reporter faults.Reporter

	cache      *cache.Cache
	client     *hubclient.Client
	fetcher    *snapshot.Fetcher
	poller     *snapshot.Poller
	push       *live.Manager
	dispatcher *command.Dispatcher

	refreshCh chan struct{}

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Session without starting any goroutines.
func New(opts Options) (*Session, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	pushURL, err := live.PushURL(cfg.BaseURL, cfg.PushPort, cfg.PushURL)
	if err != nil {
		return nil, fmt.Errorf("resolve push url: %w", err)
	}

	s := &Session{
		id:        opts.ID,
		cfg:       cfg,
		now:       opts.Now,
		metrics:   opts.Metrics,
		recorder:  faults.NewRecorder(100),
		cache:     cache.New(cfg.CacheSize),
		client:    hubclient.New(cfg.BaseURL, httpClient),
		refreshCh: make(chan struct{}, 1),
	}
	s.log = opts.Logger.With().Str("session", s.id).Logger()

	sinks := faults.Multi{faults.NewLogReporter(s.log), s.recorder}
	if opts.Reporter != nil {
		sinks = append(sinks, opts.Reporter)
	}
	if s.metrics != nil {
		sinks = append(sinks, s.metrics)
	}
	s.reporter = sinks

	s.fetcher = snapshot.NewFetcher(s.client, s.cache, snapshot.Options{
		Limit:    cfg.CacheSize,
		Reporter: s.reporter,
		Logger:   s.log,
		Now:      opts.Now,
	})
	s.poller = snapshot.NewPoller(syncerFunc(s.Refresh), cfg.PollInterval, s.log)
	s.push = live.New(s.cache, live.Options{
		URL:            pushURL,
		Dialer:         opts.Dialer,
		ReconnectDelay: cfg.ReconnectDelay,
		Reporter:       s.reporter,
		Logger:         s.log,
		OnEvent:        s.onPushEvent,
	})
	s.push.OnStateChange(s.onPushState)
	s.dispatcher = command.New(s.client, syncerFunc(s.Refresh), command.Options{
		Reporter: s.reporter,
		Logger:   s.log,
	})
	return s, nil
}

// syncerFunc adapts a method value to snapshot.Syncer and command.Refresher.
type syncerFunc func(ctx context.Context) error

func (f syncerFunc) Sync(ctx context.Context) error { return f(ctx) }

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Config returns the settings the session was built with.
func (s *Session) Config() config.Config { return s.cfg }

// Cache returns the reconciled view. Read-only for callers.
func (s *Session) Cache() *cache.Cache { return s.cache }

// PushURL returns the push endpoint in use.
func (s *Session) PushURL() string { return s.push.URL() }

// PushState returns the push channel's connection state.
func (s *Session) PushState() live.State { return s.push.State() }

// PushAttempts returns how many push dials have been started.
func (s *Session) PushAttempts() int64 { return s.push.Attempts() }

// OnPushState registers fn for push state transitions. fn must not block.
func (s *Session) OnPushState(fn func(from, to live.State)) { s.push.OnStateChange(fn) }

// Health reports the last snapshot outcome (backend online/offline).
func (s *Session) Health() snapshot.Health { return s.fetcher.Health() }

// LastFault returns the most recent fault of this session.
func (s *Session) LastFault() (faults.Fault, bool) { return s.recorder.Last() }

// Faults returns the recent faults of this session, oldest first.
func (s *Session) Faults() []faults.Fault { return s.recorder.Faults() }

// Start launches the poller, the push channel and the refresh-on-push worker.
// They run until ctx is done or Close is called.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)

	s.log.Info().
		Str("base_url", s.cfg.BaseURL).
		Str("push_url", s.push.URL()).
		Int("cache_size", s.cfg.CacheSize).
		Msg("session starting")

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.poller.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		_ = s.push.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.refreshLoop(ctx)
	}()
	return nil
}

// Close stops every goroutine started by Start and waits for them.
func (s *Session) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("session closed")
	return nil
}

// Refresh runs one snapshot cycle now. Overlapping cycles are allowed; the last
// to complete wins.
func (s *Session) Refresh(ctx context.Context) error {
	err := s.fetcher.Sync(ctx)
	if s.metrics != nil {
		s.metrics.Sync(err)
		s.metrics.CacheSize(s.cache.Len())
	}
	return err
}

// Create sends one manual event. Blank source and message get their defaults.
func (s *Session) Create(ctx context.Context, source string, severity protocol.Severity, message string) (protocol.Event, error) {
	ev, err := s.dispatcher.CreateEvent(ctx, source, severity, message)
	if err == nil && s.metrics != nil {
		s.metrics.Created("single", 1)
	}
	return ev, err
}

// Seed creates the demo events.
func (s *Session) Seed(ctx context.Context) (protocol.BatchResult, error) {
	res, err := s.dispatcher.Seed(ctx)
	if s.metrics != nil {
		s.metrics.Created("batch", res.Created)
	}
	return res, err
}

// Import replays an import document.
func (s *Session) Import(ctx context.Context, doc command.ImportDocument) (protocol.BatchResult, error) {
	res, err := s.dispatcher.Import(ctx, doc)
	if s.metrics != nil {
		s.metrics.Created("batch", res.Created)
	}
	return res, err
}

// Export reads a fresh snapshot at the export limit. The cache is not touched.
func (s *Session) Export(ctx context.Context) (command.ExportDocument, error) {
	snap, err := s.fetcher.Fetch(ctx, s.cfg.ExportLimit)
	if err != nil {
		s.reporter.Report(faults.FromError(faults.ComponentExport, err))
		return command.ExportDocument{}, err
	}
	return command.BuildExport(snap, s.now()), nil
}

func (s *Session) onPushEvent(_ protocol.Event, added bool) {
	if s.metrics != nil {
		s.metrics.PushEvent(added)
		s.metrics.CacheSize(s.cache.Len())
	}
	if added && s.cfg.RefreshOnPush {
		select {
		case s.refreshCh <- struct{}{}:
		default:
		}
	}
}

func (s *Session) onPushState(_, to live.State) {
	if s.metrics == nil {
		return
	}
	if to == live.StateConnecting {
		s.metrics.PushAttempt()
	}
	s.metrics.PushConnected(to == live.StateOpen)
}

// refreshLoop serves refresh-on-push requests; bursts coalesce into one sync.
func (s *Session) refreshLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.refreshCh:
			_ = s.Refresh(ctx)
		}
	}
}
