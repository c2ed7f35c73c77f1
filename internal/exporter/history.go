package exporter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanket-telunagi/k8sfs/internal/report"
	"github.com/sanket-telunagi/k8sfs/internal/timeseries"
)

// History records per-cycle pod and node counts so trends survive across watch cycles
type History struct {
	logger *zap.Logger
	store  timeseries.Store
}

// NewHistory creates a history exporter backed by store
func NewHistory(logger *zap.Logger, store timeseries.Store) *History {
	return &History{logger: logger, store: store}
}

// Name returns the exporter name
func (h *History) Name() string {
	return "history"
}

// Store returns the backing series store
func (h *History) Store() timeseries.Store {
	return h.store
}

// Export appends one point per series at the cycle completion time, then prunes old points
func (h *History) Export(_ context.Context, cycle Cycle) error {
	at := cycle.CompletedAt
	summary := report.SummarizeByNamespace(cycle.Snapshot)

	h.add(timeseries.Key(timeseries.ClusterPods, ""), at, float64(summary.TotalPods))
	byNode := report.SummarizeByNode(cycle.Snapshot)
	h.add(timeseries.Key(timeseries.ClusterNodes, ""), at, float64(len(byNode)))

	for namespace, ns := range summary.Namespaces {
		h.add(timeseries.Key(timeseries.NamespacePods, namespace), at, float64(ns.PodCount))
		h.add(timeseries.Key(timeseries.NamespaceNodes, namespace), at, float64(ns.NodeCount))
	}
	for node, view := range byNode {
		h.add(timeseries.Key(timeseries.NodePods, node), at, float64(view.TotalPods))
	}

	h.store.Prune(at)
	return nil
}

func (h *History) add(key string, at time.Time, value float64) {
	series := h.store.Upsert(key)
	if series == nil {
		h.logger.Warn("Series limit reached, dropping point", zap.String("series", key))
		return
	}
	series.Add(timeseries.Point{T: at, V: value})
}
