package spaceflake

import (
	"github.com/hashicorp/go-hclog"
)

// DefaultDriftTolerance is the smallest backwards clock jump, in milliseconds, that
// fails generation instead of being waited out.
const DefaultDriftTolerance uint64 = 10

// Option configures nodes and workers. Options given to a node are applied to every
// worker the node creates.
type Option = func(*options)

type options struct {
	baseEpoch      uint64
	clock          Clock
	logger         hclog.Logger
	metrics        *Metrics
	driftDetection bool
	driftTolerance uint64
}

func newOptions(opts []Option) options {
	o := options{
		baseEpoch:      EPOCH,
		clock:          SystemClock{},
		logger:         hclog.NewNullLogger(),
		metrics:        nopMetrics,
		driftDetection: true,
		driftTolerance: DefaultDriftTolerance,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithBaseEpoch(baseEpoch uint64) Option {
	return func(o *options) { o.baseEpoch = baseEpoch }
}

func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithDriftDetection turns the backwards clock guard on or off. With detection off a
// worker packs whatever the clock reports, which can repeat ids after a clock jump.
func WithDriftDetection(enabled bool) Option {
	return func(o *options) { o.driftDetection = enabled }
}

// WithDriftTolerance sets the jump in milliseconds at which generation fails.
func WithDriftTolerance(ms uint64) Option {
	return func(o *options) { o.driftTolerance = ms }
}
