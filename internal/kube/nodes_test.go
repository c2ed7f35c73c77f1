package kube

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	ktesting "k8s.io/client-go/testing"
)

func TestEphemeralStorage(t *testing.T) {
	tests := []struct {
		name            string
		node            corev1.Node
		wantCapacity    *string
		wantAllocatable *string
	}{
		{
			name: "reports both",
			node: corev1.Node{
				Status: corev1.NodeStatus{
					Capacity: corev1.ResourceList{
						corev1.ResourceEphemeralStorage: resource.MustParse("100Gi"),
					},
					Allocatable: corev1.ResourceList{
						corev1.ResourceEphemeralStorage: resource.MustParse("90Gi"),
					},
				},
			},
			wantCapacity:    strPtr("100Gi"),
			wantAllocatable: strPtr("90Gi"),
		},
		{
			name: "capacity only",
			node: corev1.Node{
				Status: corev1.NodeStatus{
					Capacity: corev1.ResourceList{
						corev1.ResourceEphemeralStorage: resource.MustParse("50Gi"),
						corev1.ResourceCPU:              resource.MustParse("4"),
					},
				},
			},
			wantCapacity: strPtr("50Gi"),
		},
		{
			name: "nothing reported",
			node: corev1.Node{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capacity, allocatable := EphemeralStorage(&tt.node)
			assert.Equal(t, tt.wantCapacity, capacity)
			assert.Equal(t, tt.wantAllocatable, allocatable)
		})
	}
}

func TestNodesAdapter_ListNodeStorage(t *testing.T) {
	fakeClient := fake.NewSimpleClientset(
		&corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "node-1"},
			Status: corev1.NodeStatus{
				Capacity: corev1.ResourceList{
					corev1.ResourceEphemeralStorage: resource.MustParse("100Gi"),
				},
				Allocatable: corev1.ResourceList{
					corev1.ResourceEphemeralStorage: resource.MustParse("90Gi"),
				},
			},
		},
		&corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "node-2"}},
	)

	adapter := NewNodesAdapter(zaptest.NewLogger(t), newTestClient(t, fakeClient))
	result, err := adapter.ListNodeStorage(context.Background())

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, NodeStorage{Name: "node-1", Capacity: strPtr("100Gi"), Allocatable: strPtr("90Gi")}, result["node-1"])
	assert.Equal(t, NodeStorage{Name: "node-2"}, result["node-2"])
}

func TestNodesAdapter_ListNodeStorage_Error(t *testing.T) {
	fakeClient := fake.NewSimpleClientset()
	fakeClient.PrependReactor("list", "nodes", func(action ktesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewUnauthorized("no token")
	})

	adapter := NewNodesAdapter(zaptest.NewLogger(t), newTestClient(t, fakeClient))
	result, err := adapter.ListNodeStorage(context.Background())

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "failed to list nodes")
}

func strPtr(s string) *string { return &s }
