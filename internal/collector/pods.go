package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"

	"github.com/sanket-telunagi/k8sfs/internal/cache"
	"github.com/sanket-telunagi/k8sfs/internal/kube"
	"github.com/sanket-telunagi/k8sfs/internal/metrics"
	"github.com/sanket-telunagi/k8sfs/internal/model"
)

// PodStageName identifies the pod stage in cache keys and metrics
const PodStageName = "pods"

const (
	paramLabelSelector = "labelSelector"
	paramFieldSelector = "fieldSelector"
)

// PodCollector lists the pods of a namespace and converts them to storage records
type PodCollector struct {
	stage *Stage[[]corev1.Pod, []model.PodRecord]
}

// NewPodCollector creates a pod collector backed by the cluster API
func NewPodCollector(logger *zap.Logger, api kube.ClusterAPI, store *cache.Store, sink metrics.Sink) *PodCollector {
	if sink == nil {
		sink = metrics.Nop{}
	}
	logger = logger.Named("pods")

	fetch := func(ctx context.Context, namespace string, params map[string]string) ([]corev1.Pod, error) {
		logger.Info("Collecting pods",
			zap.String("namespace", namespace),
			zap.String("labelSelector", params[paramLabelSelector]),
			zap.String("fieldSelector", params[paramFieldSelector]))

		pods, err := api.ListPods(ctx, namespace, kube.ListOptions{
			LabelSelector: params[paramLabelSelector],
			FieldSelector: params[paramFieldSelector],
		})
		if err != nil {
			return nil, err
		}
		sink.AddPods(namespace, len(pods))
		return pods, nil
	}

	transform := func(namespace string, pods []corev1.Pod) ([]model.PodRecord, error) {
		return PodRecords(logger, pods), nil
	}

	return &PodCollector{
		stage: NewStage(PodStageName, logger, store, sink, fetch, transform),
	}
}

// Collect returns the pod records of namespace, optionally narrowed by selectors
func (c *PodCollector) Collect(ctx context.Context, namespace string, opts kube.ListOptions) ([]model.PodRecord, error) {
	return c.stage.Collect(ctx, namespace, map[string]string{
		paramLabelSelector: opts.LabelSelector,
		paramFieldSelector: opts.FieldSelector,
	})
}

// PodRecords converts pods to storage records. Pods that cannot be converted are
// skipped with a warning.
func PodRecords(logger *zap.Logger, pods []corev1.Pod) []model.PodRecord {
	records := make([]model.PodRecord, 0, len(pods))
	for i := range pods {
		record, err := PodRecordFromPod(&pods[i])
		if err != nil {
			logger.Warn("Failed to process pod",
				zap.String("pod", pods[i].Name),
				zap.String("namespace", pods[i].Namespace),
				zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	return records
}

// PodRecordFromPod extracts the storage view of a pod
func PodRecordFromPod(pod *corev1.Pod) (model.PodRecord, error) {
	if pod.Name == "" {
		return model.PodRecord{}, fmt.Errorf("pod has no name")
	}

	node := pod.Spec.NodeName
	if node == "" {
		node = model.UnscheduledNode
	}

	volumes := make([]model.VolumeRecord, 0, len(pod.Spec.Volumes))
	for i := range pod.Spec.Volumes {
		volumes = append(volumes, volumeRecord(&pod.Spec.Volumes[i]))
	}

	return model.PodRecord{
		Name:             pod.Name,
		Namespace:        pod.Namespace,
		Node:             node,
		Volumes:          volumes,
		EphemeralStorage: ephemeralStorage(pod.Spec.Containers),
	}, nil
}

// ephemeralStorage returns the last ephemeral-storage quantity declared across the
// containers, including an explicit 0. Within a container a limit overrides a request.
// Declarations are not summed; the last one seen wins.
func ephemeralStorage(containers []corev1.Container) *string {
	var result *string
	for i := range containers {
		resources := containers[i].Resources
		if q, ok := resources.Requests[corev1.ResourceEphemeralStorage]; ok {
			result = model.StringPtr(q.String())
		}
		if q, ok := resources.Limits[corev1.ResourceEphemeralStorage]; ok {
			result = model.StringPtr(q.String())
		}
	}
	return result
}

func volumeRecord(volume *corev1.Volume) model.VolumeRecord {
	record := model.VolumeRecord{
		Name: volume.Name,
		Type: volumeType(volume),
	}
	if volume.PersistentVolumeClaim != nil {
		record.ClaimName = model.StringPtr(volume.PersistentVolumeClaim.ClaimName)
	}
	return record
}

func volumeType(volume *corev1.Volume) model.VolumeType {
	switch {
	case volume.PersistentVolumeClaim != nil:
		return model.VolumeTypeClaim
	case volume.ConfigMap != nil:
		return model.VolumeTypeConfigMap
	case volume.Secret != nil:
		return model.VolumeTypeSecret
	case volume.EmptyDir != nil:
		return model.VolumeTypeEmptyDir
	case volume.HostPath != nil:
		return model.VolumeTypeHostPath
	default:
		return model.VolumeTypeUnknown
	}
}
