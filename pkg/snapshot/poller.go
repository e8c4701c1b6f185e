package snapshot

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"alerthub/pkg/protocol"
)

// Syncer is anything that can run one snapshot cycle.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Poller runs a Syncer once at start and then on a fixed interval.
type Poller struct {
	syncer   Syncer
	interval time.Duration
	log      zerolog.Logger
}

// NewPoller returns a Poller. A non-positive interval uses protocol.DefaultPollInterval.
func NewPoller(s Syncer, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = protocol.DefaultPollInterval
	}
	return &Poller{syncer: s, interval: interval, log: log}
}

// Interval returns the polling period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run blocks until ctx is done. A failed cycle is left for the next tick.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info().Dur("interval", p.interval).Msg("snapshot poller started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("snapshot poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if err := p.syncer.Sync(ctx); err != nil && ctx.Err() == nil {
		p.log.Debug().Err(err).Msg("snapshot sync failed, retrying next tick")
	}
}
