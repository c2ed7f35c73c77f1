package exporter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sanket-telunagi/k8sfs/internal/metrics"
	"github.com/sanket-telunagi/k8sfs/internal/report"
	"github.com/sanket-telunagi/k8sfs/internal/timeseries"
	"github.com/sanket-telunagi/k8sfs/internal/version"
)

func newTestServer(t *testing.T) (*Server, *SnapshotStore) {
	store := NewSnapshotStore()
	return NewServer(zaptest.NewLogger(t), ":0", store, metrics.NewPrometheus()), store
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	server, _ := newTestServer(t)

	rec := get(t, server.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_ReadyAfterFirstCycle(t *testing.T) {
	server, store := newTestServer(t)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, server.Handler(), "/readyz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, server.Handler(), "/api/v1/snapshot").Code)

	require.NoError(t, store.Export(context.Background(), testCycle()))
	assert.Equal(t, http.StatusOK, get(t, server.Handler(), "/readyz").Code)
}

func TestServer_Version(t *testing.T) {
	server, _ := newTestServer(t)

	rec := get(t, server.Handler(), "/version")
	require.Equal(t, http.StatusOK, rec.Code)

	var info version.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, version.Get(), info)
}

func TestServer_Snapshot(t *testing.T) {
	server, store := newTestServer(t)
	cycle := testCycle()
	require.NoError(t, store.Export(context.Background(), cycle))

	rec := get(t, server.Handler(), "/api/v1/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	var decoded Cycle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, cycle.ID, decoded.ID)
	assert.Len(t, decoded.Snapshot["default"], 2)
}

func TestServer_NamespaceSnapshot(t *testing.T) {
	server, store := newTestServer(t)
	require.NoError(t, store.Export(context.Background(), testCycle()))

	rec := get(t, server.Handler(), "/api/v1/snapshot/default")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Namespace string            `json:"namespace"`
		Nodes     []json.RawMessage `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "default", body.Namespace)
	assert.Len(t, body.Nodes, 2)

	rec = get(t, server.Handler(), "/api/v1/snapshot/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "namespace not collected")
}

func TestServer_SummaryAndNodes(t *testing.T) {
	server, store := newTestServer(t)
	require.NoError(t, store.Export(context.Background(), testCycle()))

	rec := get(t, server.Handler(), "/api/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary report.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.TotalPods)

	rec = get(t, server.Handler(), "/api/v1/nodes")
	require.Equal(t, http.StatusOK, rec.Code)
	var nodes map[string]report.NodeView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nodes))
	assert.Equal(t, 2, nodes["node-1"].TotalPods)
}

func TestServer_Metrics(t *testing.T) {
	server, _ := newTestServer(t)

	get(t, server.Handler(), "/healthz")
	rec := get(t, server.Handler(), "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `k8s_fs_http_requests_total{method="GET",path="/healthz",status_code="200"} 1`)
}

func TestServer_History(t *testing.T) {
	history := NewHistory(zaptest.NewLogger(t), timeseries.NewMemStore(timeseries.DefaultConfig()))
	server := NewServer(zaptest.NewLogger(t), ":0", NewSnapshotStore(), metrics.NewPrometheus(), WithHistory(history.Store()))

	require.NoError(t, history.Export(context.Background(), testCycle()))

	rec := get(t, server.Handler(), "/api/v1/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var keys struct {
		Series []string `json:"series"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &keys))
	assert.Contains(t, keys.Series, "namespace.pods.default")
	assert.Contains(t, keys.Series, "cluster.pods")

	rec = get(t, server.Handler(), "/api/v1/history/namespace.pods.default")
	require.Equal(t, http.StatusOK, rec.Code)
	var series struct {
		Points []timeseries.Point `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	require.Len(t, series.Points, 1)
	assert.Equal(t, 3.0, series.Points[0].V)

	rec = get(t, server.Handler(), "/api/v1/history/namespace.pods.default?since=2999-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"series":"namespace.pods.default","points":[]}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(t, server.Handler(), "/api/v1/history/cluster.pods?since=yesterday").Code)
	assert.Equal(t, http.StatusNotFound, get(t, server.Handler(), "/api/v1/history/unknown").Code)
}

func TestServer_HistoryDisabled(t *testing.T) {
	server, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, server.Handler(), "/api/v1/history").Code)
}
