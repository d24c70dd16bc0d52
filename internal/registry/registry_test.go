package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardguard/fraudengine/internal/fieldreg"
	"github.com/cardguard/fraudengine/internal/manifest"
)

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

func seed(t *testing.T, store *fakeStore, bucket, env, country, key string, version int, rules []manifest.RawRule) {
	t.Helper()
	artifact := manifest.Artifact{RulesetKey: key, RulesetVersion: version, ExecutionMode: "first_match", Rules: rules}
	artifactBody, err := json.Marshal(artifact)
	require.NoError(t, err)
	artifactKey := "artifacts/" + country + "-" + key + "-v" + string(rune('0'+version)) + ".json"
	store.put(bucket, artifactKey, artifactBody)

	sum := sha256.Sum256(artifactBody)
	m := manifest.Manifest{
		SchemaVersion:  "2.0",
		Environment:    env,
		Country:        country,
		RulesetKey:     key,
		RulesetVersion: version,
		ArtifactURI:    "s3://" + bucket + "/" + artifactKey,
		Checksum:       "sha256:" + hex.EncodeToString(sum[:]),
	}
	manifestBody, err := json.Marshal(m)
	require.NoError(t, err)
	store.put(bucket, "rulesets/"+env+"/"+country+"/"+key+"/manifest.json", manifestBody)
}

func testRegistry(t *testing.T) *fieldreg.Registry {
	t.Helper()
	reg, err := fieldreg.Build(1, []fieldreg.Field{{Name: "amount", DataType: fieldreg.TypeNumber}})
	require.NoError(t, err)
	return reg
}

func TestHotSwapInstallsNewVersion(t *testing.T) {
	store := newFakeStore()
	seed(t, store, "bucket", "prod", "US", "CARD_AUTH", 1, []manifest.RawRule{
		{RuleID: "r1", Enabled: true, Action: "APPROVE", Condition: json.RawMessage(`{"field":"amount","op":"GT","value":0}`)},
	})

	loader := manifest.NewLoader(store, "bucket", "", "prod")
	r := New(loader)
	fieldRegistry := testRegistry(t)

	result := r.HotSwap(context.Background(), fieldRegistry, nil, "US", "CARD_AUTH")
	require.True(t, result.Success)
	require.Equal(t, 1, result.Version)
	require.Equal(t, 1, r.CurrentVersion("US", "CARD_AUTH"))
}

func TestHotSwapFailureLeavesPriorValueUntouched(t *testing.T) {
	store := newFakeStore()
	seed(t, store, "bucket", "prod", "US", "CARD_AUTH", 1, []manifest.RawRule{
		{RuleID: "r1", Enabled: true, Action: "APPROVE", Condition: json.RawMessage(`{"field":"amount","op":"GT","value":0}`)},
	})

	loader := manifest.NewLoader(store, "bucket", "", "prod")
	r := New(loader)
	fieldRegistry := testRegistry(t)

	first := r.HotSwap(context.Background(), fieldRegistry, nil, "US", "CARD_AUTH")
	require.True(t, first.Success)

	store.put("bucket", "rulesets/prod/US/CARD_AUTH/manifest.json", []byte(`{"schema_version":"1.0"}`))
	second := r.HotSwap(context.Background(), fieldRegistry, nil, "US", "CARD_AUTH")
	require.False(t, second.Success)
	require.Equal(t, 1, r.CurrentVersion("US", "CARD_AUTH"))
}

func TestGetWithFallbackUsesGlobalPartition(t *testing.T) {
	store := newFakeStore()
	seed(t, store, "bucket", "prod", "global", "CARD_AUTH", 3, []manifest.RawRule{
		{RuleID: "g1", Enabled: true, Action: "DECLINE", Condition: json.RawMessage(`{"field":"amount","op":"GT","value":0}`)},
	})

	loader := manifest.NewLoader(store, "bucket", "", "prod")
	r := New(loader)
	fieldRegistry := testRegistry(t)

	result := r.HotSwap(context.Background(), fieldRegistry, nil, "global", "CARD_AUTH")
	require.True(t, result.Success)

	require.Nil(t, r.Get("FR", "CARD_AUTH"))
	rs := r.GetWithFallback("FR", "CARD_AUTH")
	require.NotNil(t, rs)
	require.Equal(t, 3, rs.Version)
}

func TestBulkLoadRequiresEveryPairNonEmpty(t *testing.T) {
	store := newFakeStore()
	seed(t, store, "bucket", "prod", "US", "CARD_AUTH", 1, []manifest.RawRule{
		{RuleID: "r1", Enabled: true, Action: "APPROVE", Condition: json.RawMessage(`{"field":"amount","op":"GT","value":0}`)},
	})

	loader := manifest.NewLoader(store, "bucket", "", "prod")
	r := New(loader)
	fieldRegistry := testRegistry(t)

	require.False(t, r.Ready())
	err := r.BulkLoad(context.Background(), fieldRegistry, nil, []RequiredPair{{Country: "US", Key: "CARD_AUTH"}})
	require.NoError(t, err)
	require.True(t, r.Ready())
}

func TestBulkLoadFailsReadinessWhenAPairIsMissing(t *testing.T) {
	store := newFakeStore()
	loader := manifest.NewLoader(store, "bucket", "", "prod")
	r := New(loader)
	fieldRegistry := testRegistry(t)

	err := r.BulkLoad(context.Background(), fieldRegistry, nil, []RequiredPair{{Country: "US", Key: "CARD_AUTH"}})
	require.Error(t, err)
	require.False(t, r.Ready())
}

func TestStatusReportsLoadedVersions(t *testing.T) {
	store := newFakeStore()
	seed(t, store, "bucket", "prod", "US", "CARD_AUTH", 5, []manifest.RawRule{
		{RuleID: "r1", Enabled: true, Action: "APPROVE", Condition: json.RawMessage(`{"field":"amount","op":"GT","value":0}`)},
	})
	loader := manifest.NewLoader(store, "bucket", "", "prod")
	r := New(loader)
	fieldRegistry := testRegistry(t)

	r.HotSwap(context.Background(), fieldRegistry, nil, "US", "CARD_AUTH")
	status := r.Status()
	require.Equal(t, 5, status["US/CARD_AUTH"])
}
