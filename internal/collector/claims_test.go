package collector

import (
	"context"
	"testing"
	"time"

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

	"github.com/sanket-telunagi/k8sfs/internal/cache"
	"github.com/sanket-telunagi/k8sfs/internal/kube"
	"github.com/sanket-telunagi/k8sfs/internal/model"
)

func boundClaim(name, capacity string) *corev1.PersistentVolumeClaim {
	storageClass := "standard"
	return &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec: corev1.PersistentVolumeClaimSpec{
			StorageClassName: &storageClass,
			AccessModes:      []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			VolumeName:       "pv-" + name,
		},
		Status: corev1.PersistentVolumeClaimStatus{
			Phase:    corev1.ClaimBound,
			Capacity: corev1.ResourceList{corev1.ResourceStorage: resource.MustParse(capacity)},
		},
	}
}

func TestClaimMapFromClaims(t *testing.T) {
	pending := corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: "pending", Namespace: "default"},
		Status:     corev1.PersistentVolumeClaimStatus{Phase: corev1.ClaimPending},
	}

	claims := ClaimMapFromClaims([]corev1.PersistentVolumeClaim{*boundClaim("pvc-1", "10Gi"), pending})

	require.Len(t, claims, 2)
	assert.Equal(t, model.ClaimInfo{
		Name:         "pvc-1",
		Namespace:    "default",
		Phase:        "Bound",
		Capacity:     model.StringPtr("10Gi"),
		StorageClass: model.StringPtr("standard"),
		AccessModes:  []string{"ReadWriteOnce"},
		VolumeName:   "pv-pvc-1",
	}, claims["pvc-1"])

	assert.Equal(t, "Pending", claims["pending"].Phase)
	assert.Nil(t, claims["pending"].Capacity)
	assert.Nil(t, claims["pending"].StorageClass)
}

func TestClaimCollector_Collect(t *testing.T) {
	fakeClient := fake.NewSimpleClientset(boundClaim("pvc-1", "10Gi"), boundClaim("pvc-2", "1Gi"))
	collector := NewClaimCollector(zaptest.NewLogger(t), newTestAPI(t, fakeClient), cache.NewStore(time.Minute), nil)

	claims, err := collector.Collect(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, "1Gi", model.Deref(claims["pvc-2"].Capacity, ""))
}

func TestClaimCollector_PermanentFailure(t *testing.T) {
	fakeClient := fake.NewSimpleClientset()
	fakeClient.PrependReactor("list", "persistentvolumeclaims", func(action ktesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewBadRequest("nope")
	})

	sink := newRecordingSink()
	collector := NewClaimCollector(zaptest.NewLogger(t), newTestAPI(t, fakeClient), cache.NewStore(time.Minute), sink)

	_, err := collector.Collect(context.Background(), "default")
	require.Error(t, err)
	assert.True(t, apierrors.IsBadRequest(err))
	assert.Equal(t, 1, sink.errors["default/"+kube.KindAPI])
}
