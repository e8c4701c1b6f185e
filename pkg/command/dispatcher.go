// Package command issues mutating requests to the hub.
//
// The dispatcher never writes to the cache. A successful single create or a
// finished batch is followed by exactly one snapshot refresh, so created
// events reach the view through the same reconciliation path as everything else.
package command

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"alerthub/pkg/faults"
	"alerthub/pkg/protocol"
)

// Creator is the mutating side of the REST boundary.
type Creator interface {
	CreateEvent(ctx context.Context, req protocol.CreateEventRequest) (protocol.Event, error)
}

// Refresher runs one snapshot cycle.
type Refresher interface {
	Sync(ctx context.Context) error
}

// Options configures a Dispatcher.
type Options struct {
	Reporter faults.Reporter
	Logger   zerolog.Logger
}

// Dispatcher turns user intents into create requests.
type Dispatcher struct {
	creator   Creator
	refresher Refresher
	reporter  faults.Reporter
	log       zerolog.Logger
}

// New returns a Dispatcher. refresher may be nil for one-shot use.
func New(creator Creator, refresher Refresher, opts Options) *Dispatcher {
	if opts.Reporter == nil {
		opts.Reporter = faults.Discard
	}
	return &Dispatcher{
		creator:   creator,
		refresher: refresher,
		reporter:  opts.Reporter,
		log:       opts.Logger,
	}
}

// BuildRequest applies the manual-entry defaults: blank source becomes
// protocol.DefaultSource, blank message protocol.DefaultMessage. Severity is
// passed through; the hub normalizes unknown values.
func BuildRequest(source string, severity protocol.Severity, message string) protocol.CreateEventRequest {
	source = strings.TrimSpace(source)
	if source == "" {
		source = protocol.DefaultSource
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = protocol.DefaultMessage
	}
	return protocol.CreateEventRequest{
		Source:   source,
		Severity: severity,
		Message:  protocol.TruncateMessage(message),
	}
}

// CreateEvent creates one event and refreshes once on success.
// A rejected request returns an error matching protocol.ErrCreationFailed.
func (d *Dispatcher) CreateEvent(ctx context.Context, source string, severity protocol.Severity, message string) (protocol.Event, error) {
	ev, err := d.creator.CreateEvent(ctx, BuildRequest(source, severity, message))
	if err != nil {
		d.reporter.Report(faults.FromError(faults.ComponentCommand, err))
		return protocol.Event{}, err
	}
	d.log.Info().Int64("id", ev.ID).Str("severity", string(ev.Severity)).Msg("event created")
	d.refresh(ctx)
	return ev, nil
}

// Seed creates the demo catalogue. See Import for batch semantics.
func (d *Dispatcher) Seed(ctx context.Context) (protocol.BatchResult, error) {
	return d.batch(ctx, faults.ComponentCommand, SeedEvents())
}

// Import creates every entry of doc in order. Failures do not stop the loop;
// the result counts successes only. One refresh follows the whole batch.
// The returned error is non-nil only when ctx ends mid-batch.
func (d *Dispatcher) Import(ctx context.Context, doc ImportDocument) (protocol.BatchResult, error) {
	reqs := make([]protocol.CreateEventRequest, len(doc.Events))
	for i, e := range doc.Events {
		reqs[i] = BuildRequest(e.Source, protocol.Severity(e.Severity), e.Message)
	}
	return d.batch(ctx, faults.ComponentImport, reqs)
}

func (d *Dispatcher) batch(ctx context.Context, component string, reqs []protocol.CreateEventRequest) (protocol.BatchResult, error) {
	var res protocol.BatchResult
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempted++
		if _, err := d.creator.CreateEvent(ctx, req); err != nil {
			d.log.Debug().Err(err).Str("source", req.Source).Msg("batch item failed")
			continue
		}
		res.Created++
	}
	if res.Partial() {
		d.reporter.Report(faults.Partial(component, res))
	}
	d.log.Info().
		Str("component", component).
		Int("attempted", res.Attempted).
		Int("created", res.Created).
		Msg("batch finished")
	d.refresh(ctx)
	return res, nil
}

func (d *Dispatcher) refresh(ctx context.Context) {
	if d.refresher == nil {
		return
	}
	// The fetcher reports its own faults.
	_ = d.refresher.Sync(ctx)
}
