package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanket-telunagi/k8sfs/internal/collector"
	"github.com/sanket-telunagi/k8sfs/internal/kube"
	"github.com/sanket-telunagi/k8sfs/internal/metrics"
	"github.com/sanket-telunagi/k8sfs/internal/model"
	"github.com/sanket-telunagi/k8sfs/internal/pool"
)

// State is a step of the per-namespace collection task
type State string

const (
	StatePending          State = "PENDING"
	StateCollectingPods   State = "COLLECTING_PODS"
	StateCollectingClaims State = "COLLECTING_CLAIMS"
	StateAggregating      State = "AGGREGATING"
	StateEnrichingNodes   State = "ENRICHING_NODES"
	StateDone             State = "DONE"
	StateFailedEmpty      State = "FAILED_EMPTY"
)

// PodSource returns the pod records of a namespace
type PodSource interface {
	Collect(ctx context.Context, namespace string, opts kube.ListOptions) ([]model.PodRecord, error)
}

// ClaimSource returns the claims of a namespace keyed by name
type ClaimSource interface {
	Collect(ctx context.Context, namespace string) (model.ClaimMap, error)
}

// NodeSource returns node storage figures keyed by node name
type NodeSource interface {
	ListNodeStorage(ctx context.Context) (map[string]kube.NodeStorage, error)
}

// Result is the outcome of one namespace task
type Result struct {
	Namespace string
	Nodes     []model.NodeRecord
	State     State
	Err       error
}

// Orchestrator runs the collection pipeline for many namespaces concurrently
type Orchestrator struct {
	logger  *zap.Logger
	pool    *pool.Pool
	pods    PodSource
	claims  ClaimSource
	nodes   NodeSource
	sink    metrics.Sink
	timeout time.Duration
	now     func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces the time source used for NodeRecord timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithTimeout sets the batch timeout passed to the pool. Zero uses the pool default.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = timeout
	}
}

// New creates an orchestrator
func New(logger *zap.Logger, p *pool.Pool, pods PodSource, claims ClaimSource, nodes NodeSource, sink metrics.Sink, opts ...Option) *Orchestrator {
	if sink == nil {
		sink = metrics.Nop{}
	}
	o := &Orchestrator{
		logger: logger,
		pool:   p,
		pods:   pods,
		claims: claims,
		nodes:  nodes,
		sink:   sink,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CollectAll runs every namespace spec on the pool and merges the results.
// A namespace whose task failed maps to an empty list. A namespace whose task was
// abandoned at the batch timeout is absent from the snapshot.
func (o *Orchestrator) CollectAll(ctx context.Context, specs []model.NamespaceSpec) model.Snapshot {
	o.logger.Info("Starting collection", zap.Int("namespaces", len(specs)))
	start := time.Now()

	results := pool.RunAll(ctx, o.pool, specs, func(ctx context.Context, spec model.NamespaceSpec) (Result, error) {
		return o.CollectNamespace(ctx, spec), nil
	}, o.timeout)

	snapshot := make(model.Snapshot, len(results))
	failed := 0
	for _, r := range results {
		snapshot[r.Namespace] = r.Nodes
		if r.State == StateFailedEmpty {
			failed++
		}
	}

	o.logger.Info("Collection completed",
		zap.Int("namespaces", len(specs)),
		zap.Int("completed", len(results)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)))

	return snapshot
}

// CollectNamespace runs the pipeline for one namespace. It never returns partial results:
// on failure Nodes is empty and State is StateFailedEmpty.
func (o *Orchestrator) CollectNamespace(ctx context.Context, spec model.NamespaceSpec) Result {
	logger := o.logger.With(zap.String("namespace", spec.Name))
	state := StatePending

	nodes, err := o.collect(ctx, spec, logger, &state)
	if err != nil {
		logger.Error("Failed to collect namespace",
			zap.String("state", string(state)),
			zap.Error(err))
		o.sink.IncError(spec.Name, collector.ErrorKind(err))
		return Result{
			Namespace: spec.Name,
			Nodes:     []model.NodeRecord{},
			State:     StateFailedEmpty,
			Err:       err,
		}
	}

	return Result{Namespace: spec.Name, Nodes: nodes, State: StateDone}
}

func (o *Orchestrator) collect(ctx context.Context, spec model.NamespaceSpec, logger *zap.Logger, state *State) ([]model.NodeRecord, error) {
	transition := func(next State) {
		logger.Debug("Namespace task transition", zap.String("from", string(*state)), zap.String("to", string(next)))
		*state = next
	}

	if spec.Name == "" {
		return nil, &collector.ValidationError{Field: "namespace", Reason: "cannot be empty"}
	}

	// Node records are built from pods, so pods are collected regardless of IncludePods
	transition(StateCollectingPods)
	pods, err := o.pods.Collect(ctx, spec.Name, kube.ListOptions{
		LabelSelector: spec.LabelSelector,
		FieldSelector: spec.FieldSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("collect pods: %w", err)
	}

	claims := model.ClaimMap{}
	if spec.IncludeClaims && o.claims != nil {
		transition(StateCollectingClaims)
		claims, err = o.claims.Collect(ctx, spec.Name)
		if err != nil {
			return nil, fmt.Errorf("collect persistent volume claims: %w", err)
		}
	}

	transition(StateAggregating)
	enriched := EnrichWithClaims(pods, claims)
	nodes := AggregateByNode(spec.Name, enriched, o.now().UTC())

	transition(StateEnrichingNodes)
	o.enrichNodes(ctx, logger, nodes)

	o.sink.SetNodes(spec.Name, len(nodes))
	transition(StateDone)

	logger.Info("Completed namespace collection",
		zap.Int("podCount", len(enriched)),
		zap.Int("nodeCount", len(nodes)))

	return nodes, nil
}

// enrichNodes fills node totals from the node listing. Failure leaves totals unset.
func (o *Orchestrator) enrichNodes(ctx context.Context, logger *zap.Logger, nodes []model.NodeRecord) {
	if o.nodes == nil || len(nodes) == 0 {
		return
	}

	storage, err := o.nodes.ListNodeStorage(ctx)
	if err != nil {
		logger.Warn("Failed to enrich node data", zap.Error(err))
		return
	}
	EnrichWithNodeStorage(nodes, storage)
}
