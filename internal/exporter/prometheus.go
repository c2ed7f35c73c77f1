package exporter

import (
	"context"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/sanket-telunagi/k8sfs/internal/metrics"
)

// NodeGauges publishes per-node gauges for the latest cycle
type NodeGauges struct {
	logger  *zap.Logger
	metrics *metrics.Prometheus
}

// NewNodeGauges creates a gauge exporter on the given metrics registry
func NewNodeGauges(logger *zap.Logger, m *metrics.Prometheus) *NodeGauges {
	return &NodeGauges{logger: logger, metrics: m}
}

// Name returns the exporter name
func (g *NodeGauges) Name() string {
	return "prometheus"
}

// Export replaces the node gauges with the values of cycle. Capacities that do not
// parse as quantities are skipped. The full set is built before it is published.
func (g *NodeGauges) Export(_ context.Context, cycle Cycle) error {
	var values []metrics.NodeGauge

	for namespace, nodes := range cycle.Snapshot {
		for _, node := range nodes {
			value := metrics.NodeGauge{Namespace: namespace, Node: node.NodeName, Pods: node.PodCount()}

			if node.TotalCapacity != nil {
				q, err := resource.ParseQuantity(*node.TotalCapacity)
				if err != nil {
					g.logger.Warn("Skipping unparsable node capacity",
						zap.String("namespace", namespace),
						zap.String("node", node.NodeName),
						zap.String("capacity", *node.TotalCapacity),
						zap.Error(err))
				} else {
					bytes := q.AsApproximateFloat64()
					value.CapacityBytes = &bytes
				}
			}
			values = append(values, value)
		}
	}

	g.metrics.ReplaceNodeGauges(values)
	return nil
}
