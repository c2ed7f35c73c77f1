package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanket-telunagi/k8sfs/internal/kube"
	"github.com/sanket-telunagi/k8sfs/internal/model"
)

func TestAggregateByNode(t *testing.T) {
	createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pods := []model.PodRecord{
		{Name: "p1", Namespace: "default", Node: "A"},
		{Name: "p2", Namespace: "default", Node: "A"},
		{Name: "p3", Namespace: "default", Node: "B"},
		{Name: "p4", Namespace: "default"},
	}

	nodes := AggregateByNode("default", pods, createdAt)

	require.Len(t, nodes, 3)
	counts := map[string]int{}
	for _, n := range nodes {
		counts[n.NodeName] = n.PodCount()
		assert.Equal(t, "default", n.Namespace)
		assert.Equal(t, createdAt, n.CreatedAt)
		assert.Nil(t, n.TotalCapacity)
	}
	assert.Equal(t, map[string]int{"A": 2, "B": 1, model.UnscheduledNode: 1}, counts)
	assert.Equal(t, model.UnscheduledNode, nodes[2].Pods[0].Node)
}

func TestAggregateByNode_Empty(t *testing.T) {
	nodes := AggregateByNode("default", nil, time.Now())
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestEnrichWithClaims(t *testing.T) {
	pods := []model.PodRecord{
		{
			Name: "web",
			Node: "A",
			Volumes: []model.VolumeRecord{
				{Name: "data", Type: model.VolumeTypeClaim, ClaimName: model.StringPtr("pvc-1")},
				{Name: "cache", Type: model.VolumeTypeClaim, ClaimName: model.StringPtr("missing")},
				{Name: "tmp", Type: model.VolumeTypeEmptyDir},
			},
		},
	}
	claims := model.ClaimMap{"pvc-1": {Name: "pvc-1", Capacity: model.StringPtr("10Gi")}}

	enriched := EnrichWithClaims(pods, claims)

	require.Len(t, enriched, 1)
	volumes := enriched[0].Volumes
	assert.Equal(t, model.StringPtr("10Gi"), volumes[0].Capacity)
	assert.Nil(t, volumes[1].Capacity)
	assert.Nil(t, volumes[2].Capacity)

	assert.Nil(t, pods[0].Volumes[0].Capacity, "input records must not be modified")
}

func TestEnrichWithClaims_EmptyMap(t *testing.T) {
	pods := []model.PodRecord{{Name: "web", Volumes: []model.VolumeRecord{{Name: "data", ClaimName: model.StringPtr("pvc-1")}}}}
	enriched := EnrichWithClaims(pods, nil)
	assert.Nil(t, enriched[0].Volumes[0].Capacity)
}

func TestEnrichWithNodeStorage(t *testing.T) {
	nodes := []model.NodeRecord{
		{NodeName: "A"},
		{NodeName: "B"},
		{NodeName: model.UnscheduledNode},
	}
	storage := map[string]kube.NodeStorage{
		"A": {Name: "A", Capacity: model.StringPtr("100Gi"), Allocatable: model.StringPtr("90Gi")},
		"B": {Name: "B", Capacity: model.StringPtr("50Gi")},
	}

	EnrichWithNodeStorage(nodes, storage)

	assert.Equal(t, "100Gi", model.Deref(nodes[0].TotalCapacity, ""))
	assert.Equal(t, "90Gi", model.Deref(nodes[0].TotalAllocatable, ""))
	assert.Equal(t, "50Gi", model.Deref(nodes[1].TotalCapacity, ""))
	assert.Nil(t, nodes[1].TotalAllocatable)
	assert.Nil(t, nodes[2].TotalCapacity)
}
