package spaceflake

import (
	"math/rand/v2"
	"slices"
)

// bulkNodeID is the node the package level BulkGenerate works on.
const bulkNodeID uint64 = 1

// Generate returns a spaceflake for the current time using a throwaway worker. When
// settings.Sequence is 0 a random sequence in [1, 4095] is used, so two calls in the
// same millisecond are unlikely, not guaranteed, to differ. Use a Worker when
// uniqueness must be guaranteed.
func Generate(settings GeneratorSettings, opts ...Option) (Spaceflake, error) {
	w, err := settingsWorker(settings, opts)
	if err != nil {
		return Spaceflake{}, err
	}
	return w.Generate()
}

// GenerateAt is Generate for the unix millisecond time at.
func GenerateAt(settings GeneratorSettings, at uint64, opts ...Option) (Spaceflake, error) {
	w, err := settingsWorker(settings, opts)
	if err != nil {
		return Spaceflake{}, err
	}
	return w.GenerateAt(at)
}

func settingsWorker(settings GeneratorSettings, opts []Option) (*Worker, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	w := newWorker(settings.NodeID, settings.WorkerID, newOptions(append(slices.Clip(opts), WithBaseEpoch(settings.BaseEpoch))))
	seq := settings.Sequence
	if seq == 0 {
		seq = rand.Uint64N(MaxSequence) + 1
	}
	w.sequence.Store(seq)
	return w, nil
}

// BulkGenerate returns settings.Amount spaceflakes on node 1, adding workers and
// rebuilding the node as the sequence and worker id ranges run out:
//   - every 4095*31*31 ids it pauses a millisecond and starts a new node and worker
//   - when the node holds all 31 workers, every 31*4095 ids, it starts a new node and worker
//   - otherwise every 4095 ids it adds a worker
func BulkGenerate(settings BulkGeneratorSettings, opts ...Option) ([]Spaceflake, error) {
	p, err := newPool(bulkNodeID, append(slices.Clip(opts), WithBaseEpoch(settings.BaseEpoch)))
	if err != nil {
		return nil, err
	}
	spaceflakes := make([]Spaceflake, 0, max(settings.Amount, 0))
	for i := 0; i < settings.Amount; i++ {
		if i > 0 {
			switch {
			case i%idsPerNodeCycle == 0:
				err = p.reset(true)
			case p.node.WorkerCount()%int(MaxWorkerID) == 0 && i%idsPerPool == 0:
				err = p.reset(false)
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
