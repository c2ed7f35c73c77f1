package orchestrator

import (
	"time"

	"github.com/sanket-telunagi/k8sfs/internal/kube"
	"github.com/sanket-telunagi/k8sfs/internal/model"
)

// EnrichWithClaims returns copies of pods whose claim-backed volumes carry the capacity
// of the matching claim. Volumes referencing an unknown claim keep a nil capacity.
// The input records are not modified, so cached records stay untouched.
func EnrichWithClaims(pods []model.PodRecord, claims model.ClaimMap) []model.PodRecord {
	enriched := make([]model.PodRecord, len(pods))
	for i, pod := range pods {
		volumes := make([]model.VolumeRecord, len(pod.Volumes))
		copy(volumes, pod.Volumes)

		for j := range volumes {
			if volumes[j].ClaimName == nil {
				continue
			}
			if claim, ok := claims[*volumes[j].ClaimName]; ok {
				volumes[j].Capacity = claim.Capacity
			}
		}

		pod.Volumes = volumes
		enriched[i] = pod
	}
	return enriched
}

// AggregateByNode groups the pods of one namespace by node. Pods without a node are
// grouped under model.UnscheduledNode. Groups appear in the order their node is first seen.
func AggregateByNode(namespace string, pods []model.PodRecord, createdAt time.Time) []model.NodeRecord {
	index := make(map[string]int)
	nodes := make([]model.NodeRecord, 0)

	for _, pod := range pods {
		node := pod.Node
		if node == "" {
			node = model.UnscheduledNode
			pod.Node = node
		}

		i, ok := index[node]
		if !ok {
			i = len(nodes)
			index[node] = i
			nodes = append(nodes, model.NodeRecord{
				NodeName:  node,
				Namespace: namespace,
				CreatedAt: createdAt,
			})
		}
		nodes[i].Pods = append(nodes[i].Pods, pod)
	}
	return nodes
}

// EnrichWithNodeStorage sets node totals from the ephemeral storage reported by each node
func EnrichWithNodeStorage(nodes []model.NodeRecord, storage map[string]kube.NodeStorage) {
	for i := range nodes {
		info, ok := storage[nodes[i].NodeName]
		if !ok {
			continue
		}
		nodes[i].TotalCapacity = info.Capacity
		nodes[i].TotalAllocatable = info.Allocatable
	}
}
