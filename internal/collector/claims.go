package collector

import (
	"context"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"

	"github.com/sanket-telunagi/k8sfs/internal/cache"
	"github.com/sanket-telunagi/k8sfs/internal/kube"
	"github.com/sanket-telunagi/k8sfs/internal/metrics"
	"github.com/sanket-telunagi/k8sfs/internal/model"
)

// ClaimStageName identifies the claim stage in cache keys and metrics
const ClaimStageName = "persistent_volume_claims"

// ClaimCollector lists the persistent volume claims of a namespace and indexes them by name
type ClaimCollector struct {
	stage *Stage[[]corev1.PersistentVolumeClaim, model.ClaimMap]
}

// NewClaimCollector creates a claim collector backed by the cluster API
func NewClaimCollector(logger *zap.Logger, api kube.ClusterAPI, store *cache.Store, sink metrics.Sink) *ClaimCollector {
	logger = logger.Named("claims")

	fetch := func(ctx context.Context, namespace string, _ map[string]string) ([]corev1.PersistentVolumeClaim, error) {
		logger.Info("Collecting persistent volume claims", zap.String("namespace", namespace))
		return api.ListPersistentVolumeClaims(ctx, namespace)
	}

	transform := func(_ string, claims []corev1.PersistentVolumeClaim) (model.ClaimMap, error) {
		return ClaimMapFromClaims(claims), nil
	}

	return &ClaimCollector{
		stage: NewStage(ClaimStageName, logger, store, sink, fetch, transform),
	}
}

// Collect returns the claims of namespace keyed by claim name
func (c *ClaimCollector) Collect(ctx context.Context, namespace string) (model.ClaimMap, error) {
	return c.stage.Collect(ctx, namespace, nil)
}

// ClaimMapFromClaims indexes claims by name
func ClaimMapFromClaims(claims []corev1.PersistentVolumeClaim) model.ClaimMap {
	result := make(model.ClaimMap, len(claims))
	for i := range claims {
		claim := &claims[i]

		info := model.ClaimInfo{
			Name:       claim.Name,
			Namespace:  claim.Namespace,
			Phase:      string(claim.Status.Phase),
			VolumeName: claim.Spec.VolumeName,
		}
		if claim.Spec.StorageClassName != nil {
			info.StorageClass = model.StringPtr(*claim.Spec.StorageClassName)
		}
		if q, ok := claim.Status.Capacity[corev1.ResourceStorage]; ok {
			info.Capacity = model.StringPtr(q.String())
		}
		for _, mode := range claim.Spec.AccessModes {
			info.AccessModes = append(info.AccessModes, string(mode))
		}

		result[claim.Name] = info
	}
	return result
}
