package spaceflake

import (
	"slices"

	"github.com/hashicorp/go-hclog"
)

// Node owns a pool of workers sharing one node id. A Node is not safe for concurrent
// mutation, the workers it hands out are.
type Node struct {
	id      uint64
	workers []*Worker
	// nextWorkerID is never decremented, removed worker ids are not handed out again.
	nextWorkerID uint64

	opts   []Option
	logger hclog.Logger
}

// NewNode creates a node. opts are applied to every worker of the node.
func NewNode(id uint64, opts ...Option) (*Node, error) {
	if err := validateNodeID(id); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &Node{
		id:           id,
		workers:      []*Worker{},
		nextWorkerID: 1,
		opts:         opts,
		logger:       o.logger.Named("spaceflake-node").With("node_id", id),
	}, nil
}

func (n *Node) ID() uint64 {
	return n.id
}

// NewWorker adds a worker with the next sequential id, starting at 1.
func (n *Node) NewWorker() (*Worker, error) {
	workerID := n.nextWorkerID
	if err := validateWorkerID(workerID); err != nil {
		return nil, err
	}
	n.nextWorkerID++
	w := newWorker(n.id, workerID, newOptions(n.opts))
	n.workers = append(n.workers, w)
	n.logger.Trace("worker added", "worker_id", workerID, "workers", len(n.workers))
	return w, nil
}

// RemoveWorker drops the worker with the given id. Unknown ids are ignored.
func (n *Node) RemoveWorker(id uint64) {
	n.workers = slices.DeleteFunc(n.workers, func(w *Worker) bool {
		return w.id == id
	})
}

// Workers returns the workers in the order they were added.
func (n *Node) Workers() []*Worker {
	return slices.Clone(n.workers)
}

// Worker looks up a worker by id.
func (n *Node) Worker(id uint64) (*Worker, bool) {
	i := slices.IndexFunc(n.workers, func(w *Worker) bool {
		return w.id == id
	})
	if i < 0 {
		return nil, false
	}
	return n.workers[i], true
}

func (n *Node) WorkerCount() int {
	return len(n.workers)
}

// reset drops every worker and restarts id assignment at 1.
func (n *Node) reset() {
	clear(n.workers)
	n.workers = n.workers[:0]
	n.nextWorkerID = 1
}

// BulkGenerate returns amount spaceflakes from a scratch pool of workers carrying this
// node's id. The workers of n are left untouched. A new worker takes over after every
// full sequence cycle and once all worker ids are used the pool starts over after a
// millisecond pause.
func (n *Node) BulkGenerate(amount int) ([]Spaceflake, error) {
	p, err := newPool(n.id, n.opts)
	if err != nil {
		return nil, err
	}
	spaceflakes := make([]Spaceflake, 0, max(amount, 0))
	for i := 0; i < amount; i++ {
		if i > 0 {
			switch {
			case i%idsPerPool == 0:
				err = p.reset(true)
			case i%idsPerWorker == 0:
				err = p.rotate()
			}
			if err != nil {
				return nil, err
			}
		}
		sf, err := p.generate()
		if err != nil {
			return nil, err
		}
		spaceflakes = append(spaceflakes, sf)
	}
	return spaceflakes, nil
}
