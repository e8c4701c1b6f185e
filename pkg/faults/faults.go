// Package faults turns swallowed sync errors into observable records.
//
// Nothing reported here is fatal. Producers classify an error with FromError
// (or Partial for bulk creates) and hand the Fault to a Reporter; reporters
// fan out to logs, the on-disk journal and metrics.
package faults

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"alerthub/pkg/protocol"
)

// Kind classifies a fault.
type Kind string

// Kind constants.
const (
	KindTransport    Kind = "transport"
	KindDecode       Kind = "decode"
	KindValidation   Kind = "validation"
	KindPartialBatch Kind = "partial_batch"
	KindUnknown      Kind = "unknown"
)

// Kinds lists every classification, for flag validation and metric pre-registration.
var Kinds = []Kind{KindTransport, KindDecode, KindValidation, KindPartialBatch, KindUnknown} //nolint:gochecknoglobals // fixed catalogue

// ParseKind reports whether s names a known Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return Kind(s), false
}

// Component names used by producers.
const (
	ComponentPush     = "push"
	ComponentSnapshot = "snapshot"
	ComponentCommand  = "command"
	ComponentImport   = "import"
	ComponentExport   = "export"
)

// Fault is one observed failure.
type Fault struct {
	Time      time.Time
	Kind      Kind
	Component string
	Op        string
	Message   string
	Count     int // failed items for partial_batch, else 1
}

// Reporter receives faults. Implementations must be safe for concurrent use.
type Reporter interface {
	Report(f Fault)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Fault)

// Report calls fn(f).
func (fn ReporterFunc) Report(f Fault) { fn(f) }

// Discard drops every fault.
var Discard Reporter = ReporterFunc(func(Fault) {}) //nolint:gochecknoglobals // stateless sink

// Classify maps an error onto a Kind using the protocol error types.
func Classify(err error) Kind {
	var (
		te *protocol.TransportError
		de *protocol.DecodeError
		se *protocol.StatusError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, protocol.ErrCreationFailed):
		return KindValidation
	case errors.As(err, &de):
		return KindDecode
	case errors.As(err, &te), errors.As(err, &se):
		// A read endpoint answering non-2xx is handled like a broken transport: retry next cycle.
		return KindTransport
	default:
		return KindUnknown
	}
}

// FromError builds a Fault for err raised by component.
func FromError(component string, err error) Fault {
	f := Fault{
		Time:      time.Now(),
		Kind:      Classify(err),
		Component: component,
		Count:     1,
	}
	if err != nil {
		f.Message = err.Error()
	}
	var (
		te *protocol.TransportError
		de *protocol.DecodeError
		se *protocol.StatusError
	)
	switch {
	case errors.As(err, &te):
		f.Op = te.Op
	case errors.As(err, &de):
		f.Op = de.Op
	case errors.As(err, &se):
		f.Op = se.Op
	}
	return f
}

// Partial builds a partial_batch Fault. Only the failure count is retained.
func Partial(component string, r protocol.BatchResult) Fault {
	return Fault{
		Time:      time.Now(),
		Kind:      KindPartialBatch,
		Component: component,
		Message:   "some items in the batch were not created",
		Count:     r.Failed(),
	}
}

// Multi fans a fault out to several reporters in order.
type Multi []Reporter

// Report forwards f to every non-nil reporter.
func (m Multi) Report(f Fault) {
	for _, r := range m {
		if r != nil {
			r.Report(f)
		}
	}
}

// LogReporter writes faults to a zerolog logger at warn level.
type LogReporter struct {
	log zerolog.Logger
}

// NewLogReporter returns a reporter logging through l.
func NewLogReporter(l zerolog.Logger) *LogReporter {
	return &LogReporter{log: l}
}

// Report logs f.
func (r *LogReporter) Report(f Fault) {
	r.log.Warn().
		Str("kind", string(f.Kind)).
		Str("component", f.Component).
		Str("op", f.Op).
		Int("count", f.Count).
		Msg(f.Message)
}

// Recorder keeps faults in memory. Tests and the TUI status bar use it.
type Recorder struct {
	mu     sync.Mutex
	faults []Fault
	limit  int
}

// NewRecorder keeps at most limit faults, dropping the oldest. Zero means unbounded.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Report appends f.
func (r *Recorder) Report(f Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = append(r.faults, f)
	if r.limit > 0 && len(r.faults) > r.limit {
		r.faults = r.faults[len(r.faults)-r.limit:]
	}
}

// Faults returns a copy of the recorded faults, oldest first.
func (r *Recorder) Faults() []Fault {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Fault, len(r.faults))
	copy(out, r.faults)
	return out
}

// Last returns the most recent fault, if any.
func (r *Recorder) Last() (Fault, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.faults) == 0 {
		return Fault{}, false
	}
	return r.faults[len(r.faults)-1], true
}

// Count returns how many faults of kind k are recorded.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.faults {
		if f.Kind == k {
			n++
		}
	}
	return n
}
