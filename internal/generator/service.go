// Package generator serves spaceflakes for one node of the process configuration.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pbinitiative/spaceflake/internal/config"
	otelint "github.com/pbinitiative/spaceflake/internal/otel"
	"github.com/pbinitiative/spaceflake/pkg/spaceflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrBulkAmount = errors.New("bulk amount out of range")
	// ErrStaleTarget rejects an explicit time older than the last id of the chosen
	// worker. The worker would either fail it as clock drift or silently stamp it with
	// the current time.
	ErrStaleTarget = errors.New("target time is before the last spaceflake of the worker")
)

type Service struct {
	conf   config.Generator
	logger hclog.Logger
	tracer trace.Tracer
	opts   []spaceflake.Option

	// mu guards node and registry misses
	mu   sync.Mutex
	node *spaceflake.Node
	// workers is a registry of every live worker by id, not a cache: its capacity
	// exceeds the worker id range, so eviction never happens and a worker keeps its
	// sequence history for the life of the service.
	workers *lru.Cache[uint64, *spaceflake.Worker]
	pool    []uint64
	next    atomic.Uint64
}

// GenerateRequest selects the worker and time of a single spaceflake. A nil WorkerID
// picks one of the node's pool workers round robin, At == 0 means now. A non zero At
// must not be older than the last spaceflake of the chosen worker (ErrStaleTarget).
type GenerateRequest struct {
	WorkerID *uint64
	At       uint64
}

type Status struct {
	NodeID         uint64   `json:"nodeId"`
	BaseEpoch      uint64   `json:"baseEpoch"`
	PoolWorkers    []uint64 `json:"poolWorkers"`
	ActiveWorkers  []uint64 `json:"activeWorkers"`
	DriftDetection bool     `json:"driftDetection"`
	MaxBulkAmount  int      `json:"maxBulkAmount"`
}

func NewService(conf config.Generator, logger hclog.Logger) (*Service, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	metrics, err := spaceflake.NewMetrics(otel.Meter("spaceflake"))
	if err != nil {
		return nil, fmt.Errorf("failed to create spaceflake metrics: %w", err)
	}
	return newService(conf, logger,
		spaceflake.WithBaseEpoch(conf.BaseEpoch),
		spaceflake.WithLogger(logger),
		spaceflake.WithMetrics(metrics),
		spaceflake.WithDriftDetection(!conf.DisableDriftDetection),
		spaceflake.WithDriftTolerance(conf.DriftToleranceMs),
	)
}

func newService(conf config.Generator, logger hclog.Logger, opts ...spaceflake.Option) (*Service, error) {
	node, err := spaceflake.NewNode(conf.NodeId, opts...)
	if err != nil {
		return nil, err
	}
	workers, err := lru.New[uint64, *spaceflake.Worker](max(conf.WorkerCacheSize, int(spaceflake.MaxWorkerID)+1))
	if err != nil {
		return nil, err
	}
	s := &Service{
		conf:    conf,
		logger:  logger.Named("generator"),
		tracer:  otel.GetTracerProvider().Tracer("spaceflake-generator"),
		opts:    opts,
		node:    node,
		workers: workers,
	}
	for range max(conf.Workers, 1) {
		w, err := node.NewWorker()
		if err != nil {
			return nil, fmt.Errorf("failed to create pool worker: %w", err)
		}
		s.workers.Add(w.ID(), w)
		s.pool = append(s.pool, w.ID())
	}
	s.logger.Info("generator ready", "node_id", conf.NodeId, "workers", len(s.pool))
	return s, nil
}

// worker returns the live worker with id, creating it on first use.
func (s *Service) worker(id uint64) (*spaceflake.Worker, error) {
	if w, ok := s.workers.Get(id); ok {
		return w, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers.Get(id); ok {
		return w, nil
	}
	w, err := spaceflake.NewWorker(s.node.ID(), id, s.opts...)
	if err != nil {
		return nil, err
	}
	s.workers.Add(id, w)
	s.logger.Debug("worker created on demand", "worker_id", id)
	return w, nil
}

func (s *Service) pick(workerID *uint64) (*spaceflake.Worker, error) {
	if workerID != nil {
		return s.worker(*workerID)
	}
	i := s.next.Add(1) - 1
	return s.worker(s.pool[i%uint64(len(s.pool))])
}

func (s *Service) Generate(ctx context.Context, req GenerateRequest) (spaceflake.Spaceflake, error) {
	_, span := s.tracer.Start(ctx, "generator/generate")
	defer span.End()

	w, err := s.pick(req.WorkerID)
	if err != nil {
		return spaceflake.Spaceflake{}, spanError(span, err)
	}
	span.SetAttributes(
		attribute.Int64(otelint.AttributeNodeID, int64(w.NodeID())),
		attribute.Int64(otelint.AttributeWorkerID, int64(w.ID())),
	)
	var sf spaceflake.Spaceflake
	if req.At != 0 {
		if last := w.LastTime(); req.At < last {
			return spaceflake.Spaceflake{}, spanError(span, fmt.Errorf("%w: worker %d last generated at %d, got %d", ErrStaleTarget, w.ID(), last, req.At))
		}
		sf, err = w.GenerateAt(req.At)
	} else {
		sf, err = w.Generate()
	}
	if err != nil {
		return spaceflake.Spaceflake{}, spanError(span, err)
	}
	span.SetAttributes(attribute.String(otelint.AttributeID, sf.String()))
	return sf, nil
}

// BulkGenerate returns amount spaceflakes from one worker, pacing over sequence cycles.
func (s *Service) BulkGenerate(ctx context.Context, amount int, workerID *uint64) ([]spaceflake.Spaceflake, error) {
	_, span := s.tracer.Start(ctx, "generator/bulk-generate", trace.WithAttributes(
		attribute.Int(otelint.AttributeAmount, amount),
	))
	defer span.End()

	if amount < 1 || amount > s.conf.MaxBulkAmount {
		return nil, spanError(span, fmt.Errorf("%w: must be between 1 and %d, got %d", ErrBulkAmount, s.conf.MaxBulkAmount, amount))
	}
	w, err := s.pick(workerID)
	if err != nil {
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.Int64(otelint.AttributeWorkerID, int64(w.ID())))
	spaceflakes, err := w.BulkGenerate(amount)
	if err != nil {
		return nil, spanError(span, err)
	}
	return spaceflakes, nil
}

// Decompose reads id against baseEpoch, the configured base epoch when 0.
func (s *Service) Decompose(ctx context.Context, id, baseEpoch uint64) (spaceflake.Spaceflake, error) {
	_, span := s.tracer.Start(ctx, "generator/decompose")
	defer span.End()

	if baseEpoch == 0 {
		baseEpoch = s.conf.BaseEpoch
	}
	span.SetAttributes(
		attribute.String(otelint.AttributeID, fmt.Sprint(id)),
		attribute.Int64(otelint.AttributeBaseEpoch, int64(baseEpoch)),
	)
	if id>>(spaceflake.IDBits-1) != 0 {
		return spaceflake.Spaceflake{}, spanError(span, spaceflake.ErrReservedBit)
	}
	return spaceflake.New(id, baseEpoch), nil
}

func (s *Service) Status() Status {
	active := s.workers.Keys()
	return Status{
		NodeID:         s.node.ID(),
		BaseEpoch:      s.conf.BaseEpoch,
		PoolWorkers:    append([]uint64{}, s.pool...),
		ActiveWorkers:  active,
		DriftDetection: !s.conf.DisableDriftDetection,
		MaxBulkAmount:  s.conf.MaxBulkAmount,
	}
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
