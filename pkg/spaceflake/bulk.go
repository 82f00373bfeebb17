package spaceflake

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/metric"
)

const (
	// idsPerWorker is one full auto incremented sequence cycle, 1 through 4095.
	idsPerWorker = int(MaxSequence)
	// idsPerPool uses every worker id a node hands out, 1 through 31.
	idsPerPool = idsPerWorker * int(MaxWorkerID)
	// idsPerNodeCycle is the pause interval of the package level BulkGenerate.
	idsPerNodeCycle = idsPerPool * int(MaxWorkerID)
)

// pool is the scratch node a bulk generation rotates its workers over.
type pool struct {
	node    *Node
	worker  *Worker
	clock   Clock
	metrics *Metrics
	logger  hclog.Logger
	attrs   metric.MeasurementOption

	last    Spaceflake
	emitted bool
}

func newPool(nodeID uint64, opts []Option) (*pool, error) {
	node, err := NewNode(nodeID, opts...)
	if err != nil {
		return nil, err
	}
	o := newOptions(opts)
	p := &pool{
		node:    node,
		clock:   o.clock,
		metrics: o.metrics,
		logger:  o.logger.Named("spaceflake-bulk").With("node_id", nodeID),
		attrs:   nodeAttributes(nodeID),
	}
	p.worker, err = node.NewWorker()
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pool) generate() (Spaceflake, error) {
	sf, err := p.worker.Generate()
	if err != nil {
		return Spaceflake{}, err
	}
	p.last = sf
	p.emitted = true
	return sf, nil
}

// rotate hands over to a fresh worker of the same node.
func (p *pool) rotate() error {
	w, err := p.node.NewWorker()
	if err != nil {
		return err
	}
	p.takeOver(w)
	p.metrics.WorkerRotations.Add(context.Background(), 1, p.attrs)
	p.logger.Trace("rotated worker", "worker_id", w.ID())
	return nil
}

// reset rebuilds the pool from worker 1. Worker ids are recycled, so the new pool may
// only start once the clock has left the millisecond of the last id.
func (p *pool) reset(pause bool) error {
	if pause {
		p.clock.Sleep(time.Millisecond)
	}
	p.waitPastLast()
	p.node.reset()
	w, err := p.node.NewWorker()
	if err != nil {
		return err
	}
	p.takeOver(w)
	p.metrics.PoolResets.Add(context.Background(), 1, p.attrs)
	p.logger.Debug("worker pool reset", "paused", pause)
	return nil
}

func (p *pool) takeOver(w *Worker) {
	if p.emitted {
		w.follow(p.last)
	}
	p.worker = w
}

func (p *pool) waitPastLast() {
	if !p.emitted {
		return
	}
	last := p.last.Time()
	for unixMilli(p.clock) <= last {
		p.clock.Sleep(time.Millisecond)
	}
}
