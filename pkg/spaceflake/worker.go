package spaceflake

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/metric"
)

// Worker generates spaceflakes for one (node, worker) pair. Generate, GenerateAt and
// BulkGenerate are safe for concurrent use.
type Worker struct {
	id     uint64
	nodeID uint64

	baseEpoch atomic.Uint64
	sequence  atomic.Uint64

	clock          Clock
	driftDetection bool
	driftTolerance uint64
	logger         hclog.Logger
	metrics        *Metrics
	attrs          metric.MeasurementOption

	// mu guards increment and lastMilli. It is never held while sleeping.
	mu        sync.Mutex
	increment uint64
	lastMilli uint64
}

// NewWorker creates a standalone worker. Workers that belong to a node should be
// created with Node.NewWorker instead.
func NewWorker(nodeID, workerID uint64, opts ...Option) (*Worker, error) {
	if err := validateNodeID(nodeID); err != nil {
		return nil, err
	}
	if err := validateWorkerID(workerID); err != nil {
		return nil, err
	}
	return newWorker(nodeID, workerID, newOptions(opts)), nil
}

func newWorker(nodeID, workerID uint64, o options) *Worker {
	w := &Worker{
		id:             workerID,
		nodeID:         nodeID,
		clock:          o.clock,
		driftDetection: o.driftDetection,
		driftTolerance: o.driftTolerance,
		logger:         o.logger.Named("spaceflake-worker").With("node_id", nodeID, "worker_id", workerID),
		metrics:        o.metrics,
		attrs:          workerAttributes(nodeID, workerID),
	}
	w.baseEpoch.Store(o.baseEpoch)
	return w
}

func (w *Worker) ID() uint64 {
	return w.id
}

func (w *Worker) NodeID() uint64 {
	return w.nodeID
}

func (w *Worker) BaseEpoch() uint64 {
	return w.baseEpoch.Load()
}

// SetBaseEpoch changes the epoch used by future generations. The counter and the
// unix millisecond of the last id are kept.
func (w *Worker) SetBaseEpoch(baseEpoch uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.baseEpoch.Store(baseEpoch)
}

// LastTime returns the unix millisecond time of the last id, 0 before the first.
func (w *Worker) LastTime() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastMilli
}

// Sequence returns the fixed sequence override, 0 when the sequence auto increments.
func (w *Worker) Sequence() uint64 {
	return w.sequence.Load()
}

// SetSequence fixes the sequence field of every following id. 0 restores the auto
// incremented sequence. The internal counter keeps advancing either way.
func (w *Worker) SetSequence(seq uint64) error {
	if err := validateSequence(seq); err != nil {
		return err
	}
	w.sequence.Store(seq)
	return nil
}

// Generate returns a spaceflake for the current time.
func (w *Worker) Generate() (Spaceflake, error) {
	return w.generate(0, false)
}

// GenerateAt returns a spaceflake for the unix millisecond time at, which must lie
// between the base epoch and now.
func (w *Worker) GenerateAt(at uint64) (Spaceflake, error) {
	return w.generate(at, true)
}

// BulkGenerate returns amount spaceflakes. A full sequence cycle is 4095 ids, so
// before the 4096th id, and every cycle after it, it sleeps a millisecond to give the
// wrapped sequence a fresh millisecond.
func (w *Worker) BulkGenerate(amount int) ([]Spaceflake, error) {
	spaceflakes := make([]Spaceflake, 0, max(amount, 0))
	for i := 0; i < amount; i++ {
		if i > 0 && i%int(MaxSequence) == 0 {
			w.clock.Sleep(time.Millisecond)
		}
		sf, err := w.Generate()
		if err != nil {
			return nil, err
		}
		spaceflakes = append(spaceflakes, sf)
	}
	return spaceflakes, nil
}

type step int

const (
	stepEmit step = iota
	stepDriftWait
	stepSequenceWait
)

func (w *Worker) generate(at uint64, explicit bool) (Spaceflake, error) {
	if err := validateNodeID(w.nodeID); err != nil {
		return Spaceflake{}, err
	}
	if err := validateWorkerID(w.id); err != nil {
		return Spaceflake{}, err
	}

	ctx := context.Background()
	for {
		a, err := w.advance(at, explicit)
		if err != nil {
			return Spaceflake{}, err
		}
		switch a.step {
		case stepDriftWait:
			if a.drift >= w.driftTolerance {
				w.metrics.DriftFailures.Add(ctx, 1, w.attrs)
				w.logger.Warn("clock moved backwards beyond tolerance", "drift_ms", a.drift, "tolerance_ms", w.driftTolerance)
				return Spaceflake{}, &ClockDriftError{Drift: a.drift}
			}
			w.metrics.DriftWaits.Add(ctx, 1, w.attrs)
			w.logger.Debug("waiting out clock drift", "drift_ms", a.drift)
			w.clock.Sleep(time.Duration(a.drift+1) * time.Millisecond)
		case stepSequenceWait:
			if explicit {
				return Spaceflake{}, ErrSequenceExhausted
			}
			w.metrics.SequenceWaits.Add(ctx, 1, w.attrs)
			w.logger.Trace("sequence wrapped within one millisecond, waiting", "delta", a.delta)
			w.clock.Sleep(time.Millisecond)
		default:
			seq := a.seq
			if override := w.sequence.Load(); override != 0 {
				seq = override
			}
			w.metrics.Generated.Add(ctx, 1, w.attrs)
			return New(pack(a.delta, w.nodeID, w.id, seq), a.baseEpoch), nil
		}

		// Waiting moved us off the requested instant, the clock decides from here on.
		explicit = false
	}
}

// attempt is the outcome of one pass through the critical section.
type attempt struct {
	step      step
	baseEpoch uint64
	delta     uint64
	seq       uint64
	drift     uint64
}

// advance is the critical section of a generation attempt. It either claims the next
// sequence value or tells the caller what to wait for. The clock is sampled under the
// lock, so a caller stalled before entering never compares a stale sample against a
// newer id of another goroutine.
func (w *Worker) advance(at uint64, explicit bool) (attempt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := unixMilli(w.clock)
	target := now
	if explicit {
		target = at
	}
	baseEpoch := w.baseEpoch.Load()
	if err := checkTemporalOrdering(baseEpoch, target, now); err != nil {
		return attempt{}, err
	}
	delta := target - baseEpoch
	if delta > MaxTime {
		return attempt{}, newConfigurationError(fieldTime, delta, MaxTime)
	}
	a := attempt{baseEpoch: baseEpoch, delta: delta}

	// lastMilli is absolute, so the history survives a base epoch change.
	if w.driftDetection && target < w.lastMilli {
		a.step, a.drift = stepDriftWait, w.lastMilli-target
		return a, nil
	}

	next := w.increment + 1
	if next > MaxSequence {
		next = 1
	}
	// A wrapped counter must not reuse the millisecond of the previous id.
	if next == 1 && w.increment != 0 && target == w.lastMilli {
		a.step = stepSequenceWait
		return a, nil
	}
	w.increment = next
	w.lastMilli = target
	a.step, a.seq = stepEmit, next
	return a, nil
}

// follow continues the drift history of sf.
func (w *Worker) follow(sf Spaceflake) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastMilli = sf.Time()
}
