package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// NodeGauge is the exported state of one node for one namespace.
// CapacityBytes is nil when the node capacity is unknown.
type NodeGauge struct {
	Namespace     string
	Node          string
	Pods          int
	CapacityBytes *float64
}

// nodeGaugeCollector serves the latest set of node gauges. The set is replaced as a
// whole, so a scrape sees either the previous cycle or the new one.
type nodeGaugeCollector struct {
	podCount *prometheus.Desc
	capacity *prometheus.Desc

	mu     sync.RWMutex
	values []NodeGauge
}

func newNodeGaugeCollector() *nodeGaugeCollector {
	labels := []string{"namespace", "node"}
	return &nodeGaugeCollector{
		podCount: prometheus.NewDesc("k8s_fs_node_pod_count", "Number of pods per node", labels, nil),
		capacity: prometheus.NewDesc("k8s_fs_node_capacity_bytes", "Node ephemeral storage capacity in bytes", labels, nil),
	}
}

func (c *nodeGaugeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.podCount
	ch <- c.capacity
}

func (c *nodeGaugeCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	values := c.values
	c.mu.RUnlock()

	for _, v := range values {
		ch <- prometheus.MustNewConstMetric(c.podCount, prometheus.GaugeValue, float64(v.Pods), v.Namespace, v.Node)
		if v.CapacityBytes != nil {
			ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, *v.CapacityBytes, v.Namespace, v.Node)
		}
	}
}

// replace swaps in a new set. A later entry for the same namespace and node wins.
func (c *nodeGaugeCollector) replace(values []NodeGauge) {
	index := make(map[[2]string]int, len(values))
	deduped := make([]NodeGauge, 0, len(values))
	for _, v := range values {
		key := [2]string{v.Namespace, v.Node}
		if i, ok := index[key]; ok {
			deduped[i] = v
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, v)
	}

	c.mu.Lock()
	c.values = deduped
	c.mu.Unlock()
}
