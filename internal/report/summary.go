package report

import (
	"sort"

	"github.com/sanket-telunagi/k8sfs/internal/model"
)

// NodeSummary is the per-node view inside a namespace summary
type NodeSummary struct {
	PodCount         int     `json:"podCount"`
	TotalCapacity    *string `json:"totalCapacity"`
	TotalAllocatable *string `json:"totalAllocatable"`
}

// NamespaceSummary totals one namespace
type NamespaceSummary struct {
	NodeCount int                    `json:"nodeCount"`
	PodCount  int                    `json:"podCount"`
	Nodes     map[string]NodeSummary `json:"nodes"`
}

// Summary totals a whole snapshot by namespace
type Summary struct {
	TotalNamespaces int                         `json:"totalNamespaces"`
	TotalNodes      int                         `json:"totalNodes"`
	TotalPods       int                         `json:"totalPods"`
	Namespaces      map[string]NamespaceSummary `json:"namespaces"`
}

// NodeNamespaceUsage lists the pods one namespace runs on a node
type NodeNamespaceUsage struct {
	PodCount int      `json:"podCount"`
	Pods     []string `json:"pods"`
}

// NodeView is the cross-namespace view of one node
type NodeView struct {
	Namespaces  map[string]NodeNamespaceUsage `json:"namespaces"`
	TotalPods   int                           `json:"totalPods"`
	Capacity    *string                       `json:"capacity"`
	Allocatable *string                       `json:"allocatable"`
}

// SummarizeByNamespace computes namespace, node and pod totals for a snapshot
func SummarizeByNamespace(snapshot model.Snapshot) Summary {
	summary := Summary{
		TotalNamespaces: len(snapshot),
		Namespaces:      make(map[string]NamespaceSummary, len(snapshot)),
	}

	for namespace, nodes := range snapshot {
		ns := NamespaceSummary{
			NodeCount: len(nodes),
			Nodes:     make(map[string]NodeSummary, len(nodes)),
		}
		for _, node := range nodes {
			ns.PodCount += node.PodCount()
			ns.Nodes[node.NodeName] = NodeSummary{
				PodCount:         node.PodCount(),
				TotalCapacity:    node.TotalCapacity,
				TotalAllocatable: node.TotalAllocatable,
			}
		}

		summary.Namespaces[namespace] = ns
		summary.TotalNodes += ns.NodeCount
		summary.TotalPods += ns.PodCount
	}

	return summary
}

// SummarizeByNode regroups a snapshot by node across namespaces. Node totals come
// from the first namespace that reported the node with totals set.
func SummarizeByNode(snapshot model.Snapshot) map[string]NodeView {
	views := make(map[string]NodeView)

	for _, namespace := range Namespaces(snapshot) {
		for _, node := range snapshot[namespace] {
			view, ok := views[node.NodeName]
			if !ok {
				view = NodeView{Namespaces: make(map[string]NodeNamespaceUsage)}
			}
			if view.Capacity == nil {
				view.Capacity = node.TotalCapacity
			}
			if view.Allocatable == nil {
				view.Allocatable = node.TotalAllocatable
			}

			pods := make([]string, 0, len(node.Pods))
			for _, pod := range node.Pods {
				pods = append(pods, pod.Name)
			}
			view.Namespaces[namespace] = NodeNamespaceUsage{PodCount: len(pods), Pods: pods}
			view.TotalPods += len(pods)

			views[node.NodeName] = view
		}
	}

	return views
}

// Namespaces returns the namespaces of a snapshot in sorted order
func Namespaces(snapshot model.Snapshot) []string {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
