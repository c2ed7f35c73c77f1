package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	ktesting "k8s.io/client-go/testing"

	"github.com/sanket-telunagi/k8sfs/internal/cache"
	"github.com/sanket-telunagi/k8sfs/internal/kube"
	"github.com/sanket-telunagi/k8sfs/internal/model"
	"github.com/sanket-telunagi/k8sfs/internal/retry"
)

func newTestAPI(t *testing.T, fakeClient *fake.Clientset) *kube.Client {
	policy := retry.DefaultPolicy(zaptest.NewLogger(t), nil)
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	return kube.NewClient(zaptest.NewLogger(t), fakeClient, kube.Options{Retry: policy})
}

func storageResources(request, limit string) corev1.ResourceRequirements {
	r := corev1.ResourceRequirements{}
	if request != "" {
		r.Requests = corev1.ResourceList{corev1.ResourceEphemeralStorage: resource.MustParse(request)}
	}
	if limit != "" {
		r.Limits = corev1.ResourceList{corev1.ResourceEphemeralStorage: resource.MustParse(limit)}
	}
	return r
}

func TestPodRecordFromPod_Volumes(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "default"},
		Spec: corev1.PodSpec{
			NodeName: "node-a",
			Volumes: []corev1.Volume{
				{Name: "data", VolumeSource: corev1.VolumeSource{PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: "pvc-1"}}},
				{Name: "config", VolumeSource: corev1.VolumeSource{ConfigMap: &corev1.ConfigMapVolumeSource{}}},
				{Name: "creds", VolumeSource: corev1.VolumeSource{Secret: &corev1.SecretVolumeSource{SecretName: "creds"}}},
				{Name: "scratch", VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}}},
				{Name: "host", VolumeSource: corev1.VolumeSource{HostPath: &corev1.HostPathVolumeSource{Path: "/var/log"}}},
				{Name: "api", VolumeSource: corev1.VolumeSource{Projected: &corev1.ProjectedVolumeSource{}}},
			},
		},
	}

	record, err := PodRecordFromPod(pod)
	require.NoError(t, err)

	assert.Equal(t, "web-1", record.Name)
	assert.Equal(t, "default", record.Namespace)
	assert.Equal(t, "node-a", record.Node)
	assert.Nil(t, record.EphemeralStorage)

	require.Len(t, record.Volumes, 6)
	types := make([]model.VolumeType, 0, len(record.Volumes))
	for _, v := range record.Volumes {
		types = append(types, v.Type)
		assert.Nil(t, v.Capacity)
	}
	assert.Equal(t, []model.VolumeType{
		model.VolumeTypeClaim,
		model.VolumeTypeConfigMap,
		model.VolumeTypeSecret,
		model.VolumeTypeEmptyDir,
		model.VolumeTypeHostPath,
		model.VolumeTypeUnknown,
	}, types)
	assert.Equal(t, model.StringPtr("pvc-1"), record.Volumes[0].ClaimName)
	assert.Nil(t, record.Volumes[1].ClaimName)
}

func TestPodRecordFromPod_Unscheduled(t *testing.T) {
	record, err := PodRecordFromPod(&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "pending", Namespace: "default"}})
	require.NoError(t, err)
	assert.Equal(t, model.UnscheduledNode, record.Node)
	assert.Empty(t, record.Volumes)
}

func TestPodRecordFromPod_EphemeralStorage(t *testing.T) {
	tests := []struct {
		name       string
		containers []corev1.Container
		want       *string
	}{
		{
			name:       "no declarations",
			containers: []corev1.Container{{Name: "app"}},
		},
		{
			name:       "request only",
			containers: []corev1.Container{{Name: "app", Resources: storageResources("1Gi", "")}},
			want:       model.StringPtr("1Gi"),
		},
		{
			name:       "limit overrides request",
			containers: []corev1.Container{{Name: "app", Resources: storageResources("1Gi", "2Gi")}},
			want:       model.StringPtr("2Gi"),
		},
		{
			name: "last container wins",
			containers: []corev1.Container{
				{Name: "app", Resources: storageResources("", "5Gi")},
				{Name: "sidecar", Resources: storageResources("500Mi", "")},
			},
			want: model.StringPtr("500Mi"),
		},
		{
			name: "container without declaration keeps earlier value",
			containers: []corev1.Container{
				{Name: "app", Resources: storageResources("3Gi", "")},
				{Name: "sidecar"},
			},
			want: model.StringPtr("3Gi"),
		},
		{
			name: "explicit zero is a declaration",
			containers: []corev1.Container{
				{Name: "app", Resources: storageResources("3Gi", "")},
				{Name: "sidecar", Resources: storageResources("0", "")},
			},
			want: model.StringPtr("0"),
		},
		{
			name:       "zero limit overrides request",
			containers: []corev1.Container{{Name: "app", Resources: storageResources("1Gi", "0")}},
			want:       model.StringPtr("0"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pod := &corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{Name: "p", Namespace: "default"},
				Spec:       corev1.PodSpec{Containers: tt.containers},
			}
			record, err := PodRecordFromPod(pod)
			require.NoError(t, err)
			assert.Equal(t, tt.want, record.EphemeralStorage)
		})
	}
}

func TestPodRecords_SkipsInvalidPods(t *testing.T) {
	pods := []corev1.Pod{
		{ObjectMeta: metav1.ObjectMeta{Name: "ok-1", Namespace: "default"}},
		{ObjectMeta: metav1.ObjectMeta{Namespace: "default"}},
		{ObjectMeta: metav1.ObjectMeta{Name: "ok-2", Namespace: "default"}},
	}

	records := PodRecords(zaptest.NewLogger(t), pods)

	require.Len(t, records, 2)
	assert.Equal(t, "ok-1", records[0].Name)
	assert.Equal(t, "ok-2", records[1].Name)
}

func TestPodCollector_Collect(t *testing.T) {
	fakeClient := fake.NewSimpleClientset(
		&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "default"}, Spec: corev1.PodSpec{NodeName: "node-a"}},
		&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "web-2", Namespace: "default"}, Spec: corev1.PodSpec{NodeName: "node-b"}},
	)
	listCalls := 0
	fakeClient.PrependReactor("list", "pods", func(action ktesting.Action) (bool, runtime.Object, error) {
		listCalls++
		return false, nil, nil
	})

	sink := newRecordingSink()
	collector := NewPodCollector(zaptest.NewLogger(t), newTestAPI(t, fakeClient), cache.NewStore(time.Minute), sink)

	records, err := collector.Collect(context.Background(), "default", kube.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, sink.pods["default"])

	records, err = collector.Collect(context.Background(), "default", kube.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, listCalls, "second call is served from the cache")
	assert.Equal(t, 2, sink.pods["default"], "cached results are not counted again")
}

func TestPodCollector_EmptyNamespace(t *testing.T) {
	collector := NewPodCollector(zaptest.NewLogger(t), newTestAPI(t, fake.NewSimpleClientset()), cache.NewStore(time.Minute), nil)

	_, err := collector.Collect(context.Background(), "", kube.ListOptions{})
	assert.ErrorIs(t, err, ErrValidation)
}
