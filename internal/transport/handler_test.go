package transport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardguard/fraudengine/internal/evaluator"
	"github.com/cardguard/fraudengine/internal/fieldreg"
	"github.com/cardguard/fraudengine/internal/loadshed"
	"github.com/cardguard/fraudengine/internal/manifest"
	"github.com/cardguard/fraudengine/internal/metrics"
	"github.com/cardguard/fraudengine/internal/outbox"
	"github.com/cardguard/fraudengine/internal/registry"
	"github.com/cardguard/fraudengine/internal/velocity"
)

// metrics.New registers against the default Prometheus registerer; every
// test in this package shares one instance.
var (
	testMetricsOnce sync.Once
	testMetricsInst *metrics.Metrics
)

func testMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() {
		testMetricsInst = metrics.New()
	})
	return testMetricsInst
}

type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) put(bucket, key string, body []byte) {
	f.objects[bucket+"/"+key] = body
}

func (f *fakeStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, manifest.ErrArtifactNotFound
	}
	return body, nil
}

type noopVelocityChecker struct{}

func (noopVelocityChecker) Check(ctx context.Context, cfg velocity.Config, value string) (velocity.Result, error) {
	return velocity.Result{}, nil
}

func buildTestServer(t *testing.T) *Server {
	t.Helper()
	fieldRegistry, err := fieldreg.Build(1, []fieldreg.Field{
		{Name: "amount", DataType: fieldreg.TypeNumber},
		{Name: "card_network", DataType: fieldreg.TypeString},
		{Name: "card_bin", DataType: fieldreg.TypeString},
		{Name: "merchant_category_code", DataType: fieldreg.TypeString},
		{Name: "card_logo", DataType: fieldreg.TypeString},
	})
	require.NoError(t, err)

	store := newFakeStore()
	artifact := manifest.Artifact{
		RulesetKey: "CARD_AUTH", RulesetVersion: 1, ExecutionMode: "first_match",
		Rules: []manifest.RawRule{
			{RuleID: "high-amount", Enabled: true, Action: "DECLINE", Condition: json.RawMessage(`{"field":"amount","op":"GT","value":1000}`)},
		},
	}
	artifactBody, err := json.Marshal(artifact)
	require.NoError(t, err)
	store.put("bucket", "artifacts/a.json", artifactBody)

	sum := sha256.Sum256(artifactBody)
	m := manifest.Manifest{
		SchemaVersion: "2.0", RulesetKey: "CARD_AUTH", RulesetVersion: 1,
		ArtifactURI: "s3://bucket/artifacts/a.json",
		Checksum:    "sha256:" + hex.EncodeToString(sum[:]),
	}
	manifestBody, err := json.Marshal(m)
	require.NoError(t, err)
	store.put("bucket", "rulesets/prod/US/CARD_AUTH/manifest.json", manifestBody)

	loader := manifest.NewLoader(store, "bucket", "", "prod")
	rulesetRegistry := registry.New(loader)
	require.NoError(t, rulesetRegistry.BulkLoad(context.Background(), fieldRegistry, nil, []registry.RequiredPair{
		{Country: "US", Key: "CARD_AUTH"},
	}))

	eval := evaluator.New(fieldRegistry, noopVelocityChecker{})
	shedder := loadshed.New(loadshed.Config{Enabled: false}, testMetrics())
	queue := outbox.NewQueue(16, testMetrics())

	return New(fieldRegistry, rulesetRegistry, eval, shedder, queue, testMetrics(), "CARD_AUTH")
}

func TestHandleAuthDeclinesHighAmount(t *testing.T) {
	srv := buildTestServer(t)
	body := `{"transaction_id":"tx-1","country":"US","fields":{"amount":5000}}`

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluate/auth", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp slimResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "DECLINE", resp.Decision)
}

func TestHandleAuthRejectsMalformedBody(t *testing.T) {
	srv := buildTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/evaluate/auth", bytes.NewBufferString(`{"fields":{}`))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleReplayReturnsMatchedRuleWithoutSideEffects(t *testing.T) {
	srv := buildTestServer(t)
	body := `{"transaction_id":"tx-2","country":"US","fields":{"amount":5000}}`

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluate/replay", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp replayResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "DECLINE", resp.Decision)
	require.Equal(t, "high-amount", resp.MatchedRuleID)
	require.Equal(t, 0, srv.queue.Len())
}

func TestHandleRegistryStatusReportsReady(t *testing.T) {
	srv := buildTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/registry/status", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, true, body["ready"])
}

func TestHandleReadyzReflectsRegistryReadiness(t *testing.T) {
	srv := buildTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
