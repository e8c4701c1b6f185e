// Package snapshot reads full, bounded snapshots from the hub and applies them.
package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"alerthub/pkg/faults"
	"alerthub/pkg/protocol"
)

// Source is the read side of the REST boundary.
type Source interface {
	FetchEvents(ctx context.Context, limit int) (protocol.EventsPage, error)
	FetchStats(ctx context.Context) (protocol.Stats, error)
}

// Sink receives a complete snapshot.
type Sink interface {
	ApplySnapshot(snap protocol.Snapshot)
}

// Options configures a Fetcher.
type Options struct {
	Limit    int // events per snapshot; defaults to protocol.DefaultCacheSize
	Reporter faults.Reporter
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Fetcher runs the two boundary reads and applies the result all-or-nothing.
type Fetcher struct {
	src      Source
	sink     Sink
	limit    int
	reporter faults.Reporter
	log      zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	lastSuccess time.Time
	lastErr     error
	syncs       uint64
}

// NewFetcher wires src to sink.
func NewFetcher(src Source, sink Sink, opts Options) *Fetcher {
	if opts.Limit <= 0 {
		opts.Limit = protocol.DefaultCacheSize
	}
	if opts.Reporter == nil {
		opts.Reporter = faults.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fetcher{
		src:      src,
		sink:     sink,
		limit:    opts.Limit,
		reporter: opts.Reporter,
		log:      opts.Logger,
		now:      opts.Now,
	}
}

// Fetch performs both reads concurrently. Either failing fails the whole snapshot.
func (f *Fetcher) Fetch(ctx context.Context, limit int) (protocol.Snapshot, error) {
	var (
		page  protocol.EventsPage
		stats protocol.Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = f.src.FetchEvents(gctx, limit)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = f.src.FetchStats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return protocol.Snapshot{}, err
	}
	return protocol.Snapshot{
		Events:    page.Items,
		EmailLogs: page.EmailLogs,
		Stats:     stats.Normalize(),
		FetchedAt: f.now(),
	}, nil
}

// Sync fetches a snapshot at the configured limit and applies it.
// On failure nothing is applied; the fault is reported and returned.
func (f *Fetcher) Sync(ctx context.Context) error {
	snap, err := f.Fetch(ctx, f.limit)
	f.mu.Lock()
	f.syncs++
	if err != nil {
		f.lastErr = err
		f.mu.Unlock()
		if ctx.Err() == nil {
			f.reporter.Report(faults.FromError(faults.ComponentSnapshot, err))
		}
		return err
	}
	f.lastErr = nil
	f.lastSuccess = snap.FetchedAt
	f.mu.Unlock()

	f.sink.ApplySnapshot(snap)
	f.log.Debug().
		Int("events", len(snap.Events)).
		Int("email_logs", len(snap.EmailLogs)).
		Int("total", snap.Stats.TotalEvents).
		Msg("snapshot applied")
	return nil
}

// Health summarizes the last sync outcome.
type Health struct {
	Online      bool
	LastSuccess time.Time
	LastError   error
	Syncs       uint64
}

// Health reports whether the most recent sync succeeded.
func (f *Fetcher) Health() Health {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Health{
		Online:      f.syncs > 0 && f.lastErr == nil,
		LastSuccess: f.lastSuccess,
		LastError:   f.lastErr,
		Syncs:       f.syncs,
	}
}

// LastSuccess returns when the last successful sync completed.
func (f *Fetcher) LastSuccess() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSuccess
}

// LastError returns the error of the most recent sync, or nil.
func (f *Fetcher) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}
