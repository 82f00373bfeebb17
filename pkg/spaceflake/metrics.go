package spaceflake

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	AttributeNodeID   = "spaceflake.node_id"
	AttributeWorkerID = "spaceflake.worker_id"
)

type Metrics struct {
	Generated       metric.Int64Counter
	DriftWaits      metric.Int64Counter
	DriftFailures   metric.Int64Counter
	SequenceWaits   metric.Int64Counter
	WorkerRotations metric.Int64Counter
	PoolResets      metric.Int64Counter
}

var nopMetrics = mustNopMetrics()

func mustNopMetrics() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("spaceflake"))
	if err != nil {
		panic(err)
	}
	return m
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var errJoin error

	generated, err := meter.Int64Counter("spaceflakes_generated", metric.WithDescription("Number of spaceflakes generated"))
	errJoin = errors.Join(errJoin, err)

	driftWaits, err := meter.Int64Counter("spaceflake_drift_waits", metric.WithDescription("Backwards clock jumps waited out by a worker"))
	errJoin = errors.Join(errJoin, err)

	driftFailures, err := meter.Int64Counter("spaceflake_drift_failures", metric.WithDescription("Backwards clock jumps above the drift tolerance"))
	errJoin = errors.Join(errJoin, err)

	sequenceWaits, err := meter.Int64Counter("spaceflake_sequence_waits", metric.WithDescription("Waits for the next millisecond after the sequence wrapped"))
	errJoin = errors.Join(errJoin, err)

	workerRotations, err := meter.Int64Counter("spaceflake_worker_rotations", metric.WithDescription("Workers added during bulk generation"))
	errJoin = errors.Join(errJoin, err)

	poolResets, err := meter.Int64Counter("spaceflake_pool_resets", metric.WithDescription("Worker pools rebuilt during bulk generation"))
	errJoin = errors.Join(errJoin, err)

	metrics := Metrics{
		Generated:       generated,
		DriftWaits:      driftWaits,
		DriftFailures:   driftFailures,
		SequenceWaits:   sequenceWaits,
		WorkerRotations: workerRotations,
		PoolResets:      poolResets,
	}
	return &metrics, errJoin
}

func workerAttributes(nodeID, workerID uint64) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(
		attribute.Int64(AttributeNodeID, int64(nodeID)),
		attribute.Int64(AttributeWorkerID, int64(workerID)),
	))
}

func nodeAttributes(nodeID uint64) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(
		attribute.Int64(AttributeNodeID, int64(nodeID)),
	))
}
