package model

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/labels"
)

// UnscheduledNode is the node name recorded for pods that are not bound to a node.
const UnscheduledNode = "unscheduled"

// VolumeType classifies the source backing a pod volume
type VolumeType string

const (
	VolumeTypeClaim     VolumeType = "pvc"
	VolumeTypeConfigMap VolumeType = "configmap"
	VolumeTypeSecret    VolumeType = "secret"
	VolumeTypeEmptyDir  VolumeType = "emptydir"
	VolumeTypeHostPath  VolumeType = "hostpath"
	VolumeTypeUnknown   VolumeType = "unknown"
)

// NamespaceSpec describes what to collect for one namespace during a collection cycle
type NamespaceSpec struct {
	Name          string `json:"name" yaml:"name"`
	IncludePods   bool   `json:"includePods" yaml:"include_pods"`
	IncludeClaims bool   `json:"includeClaims" yaml:"include_claims"`
	LabelSelector string `json:"labelSelector,omitempty" yaml:"label_selector"`
	FieldSelector string `json:"fieldSelector,omitempty" yaml:"field_selector"`
}

// Validate checks that the namespace is named and that its selectors parse
func (s NamespaceSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("namespace name cannot be empty")
	}
	if s.LabelSelector != "" {
		if _, err := labels.Parse(s.LabelSelector); err != nil {
			return fmt.Errorf("invalid label selector %q: %w", s.LabelSelector, err)
		}
	}
	if s.FieldSelector != "" {
		if _, err := fields.ParseSelector(s.FieldSelector); err != nil {
			return fmt.Errorf("invalid field selector %q: %w", s.FieldSelector, err)
		}
	}
	return nil
}

// VolumeRecord is the storage view of a single pod volume.
// Capacity is nil until it is enriched from a matching claim.
type VolumeRecord struct {
	Name      string     `json:"name"`
	Type      VolumeType `json:"type"`
	Capacity  *string    `json:"capacity"`
	ClaimName *string    `json:"pvcName"`
}

// PodRecord is the storage view of a single pod
type PodRecord struct {
	Name             string         `json:"name"`
	Namespace        string         `json:"namespace"`
	Node             string         `json:"node"`
	Volumes          []VolumeRecord `json:"volumes"`
	EphemeralStorage *string        `json:"ephemeralStorage"`
}

// ClaimInfo is the subset of a persistent volume claim used for enrichment
type ClaimInfo struct {
	Name         string   `json:"name"`
	Namespace    string   `json:"namespace"`
	Phase        string   `json:"status"`
	Capacity     *string  `json:"capacity"`
	StorageClass *string  `json:"storageClass"`
	AccessModes  []string `json:"accessModes,omitempty"`
	VolumeName   string   `json:"volumeName,omitempty"`
}

// ClaimMap indexes claims of one namespace by claim name
type ClaimMap map[string]ClaimInfo

// NodeRecord groups the pods of one namespace that run on the same node
type NodeRecord struct {
	NodeName         string      `json:"nodeName"`
	Namespace        string      `json:"namespace"`
	Pods             []PodRecord `json:"pods"`
	TotalCapacity    *string     `json:"totalCapacity"`
	TotalAllocatable *string     `json:"totalAllocatable"`
	CreatedAt        time.Time   `json:"timestamp"`
}

// PodCount returns the number of pods grouped under the node
func (n NodeRecord) PodCount() int {
	return len(n.Pods)
}

// Snapshot is the output of one collection cycle: namespace name to its node records
type Snapshot map[string][]NodeRecord

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// Deref returns the pointed-to string or fallback when p is nil
func Deref(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
