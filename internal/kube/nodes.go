package kube

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
)

// NodeStorage represents a node's ephemeral storage capacity
type NodeStorage struct {
	Name        string  `json:"name"`
	Capacity    *string `json:"capacity,omitempty"`
	Allocatable *string `json:"allocatable,omitempty"`
}

// EphemeralStorage returns the node's ephemeral-storage capacity and allocatable
// quantities in their canonical string form, or nil when the node does not report them
func EphemeralStorage(node *corev1.Node) (capacity, allocatable *string) {
	if q, ok := node.Status.Capacity[corev1.ResourceEphemeralStorage]; ok {
		s := q.String()
		capacity = &s
	}
	if q, ok := node.Status.Allocatable[corev1.ResourceEphemeralStorage]; ok {
		s := q.String()
		allocatable = &s
	}
	return capacity, allocatable
}

// NodesAdapter provides node storage information
type NodesAdapter struct {
	logger *zap.Logger
	api    ClusterAPI
}

// NewNodesAdapter creates a new nodes adapter
func NewNodesAdapter(logger *zap.Logger, api ClusterAPI) *NodesAdapter {
	return &NodesAdapter{
		logger: logger,
		api:    api,
	}
}

// ListNodeStorage returns the ephemeral storage figures of every node, keyed by node name
func (na *NodesAdapter) ListNodeStorage(ctx context.Context) (map[string]NodeStorage, error) {
	nodes, err := na.api.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	result := make(map[string]NodeStorage, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		capacity, allocatable := EphemeralStorage(node)
		result[node.Name] = NodeStorage{
			Name:        node.Name,
			Capacity:    capacity,
			Allocatable: allocatable,
		}

		na.logger.Debug("Node storage collected",
			zap.String("node", node.Name),
			zap.Stringp("capacity", capacity),
			zap.Stringp("allocatable", allocatable),
		)
	}

	na.logger.Debug("Collected node storage", zap.Int("nodeCount", len(result)))

	return result, nil
}
