package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/cardguard/fraudengine/internal/condition"
	"github.com/cardguard/fraudengine/internal/fieldreg"
	"github.com/cardguard/fraudengine/internal/ruleset"
)

// Loader resolves a (country, ruleset_key) pair to a compiled
// ruleset.Ruleset: fetch manifest -> fetch artifact -> verify checksum ->
// parse -> compile each rule via the condition compiler -> presort ->
// construct.
type Loader struct {
	store       ObjectStore
	bucket      string
	pathPrefix  string
	environment string
}

// NewLoader builds a Loader against the given object store and bucket
// layout.
func NewLoader(store ObjectStore, bucket, pathPrefix, environment string) *Loader {
	return &Loader{store: store, bucket: bucket, pathPrefix: pathPrefix, environment: environment}
}

func (l *Loader) manifestKey(country, rulesetKey string) string {
	return path.Join(l.pathPrefix, "rulesets", l.environment, country, rulesetKey, "manifest.json")
}

func (l *Loader) legacyManifestKey(rulesetKey string) string {
	return path.Join(l.pathPrefix, "rulesets", l.environment, "global", rulesetKey, "manifest.json")
}

// fetchManifest tries the country-partitioned path first, then falls back
// to the legacy global path.
func (l *Loader) fetchManifest(ctx context.Context, country, rulesetKey string) (*Manifest, error) {
	body, err := l.store.GetObject(ctx, l.bucket, l.manifestKey(country, rulesetKey))
	if err != nil {
		body, err = l.store.GetObject(ctx, l.bucket, l.legacyManifestKey(rulesetKey))
		if err != nil {
			return nil, err
		}
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaIncompatible, err)
	}
	if m.SchemaVersion != supportedSchemaVersion {
		return nil, fmt.Errorf("%w: got %q want %q", ErrSchemaIncompatible, m.SchemaVersion, supportedSchemaVersion)
	}
	return &m, nil
}

// fetchArtifact fetches and checksum-verifies the artifact named by the
// manifest, parsing it into an Artifact.
func (l *Loader) fetchArtifact(ctx context.Context, m *Manifest) (*Artifact, error) {
	bucket, key, err := parseArtifactURI(m.ArtifactURI)
	if err != nil {
		return nil, err
	}
	if bucket == "" {
		bucket = l.bucket
	}

	body, err := l.store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(body)
	got := "sha256:" + hex.EncodeToString(sum[:])
	if !strings.EqualFold(got, m.Checksum) {
		return nil, fmt.Errorf("%w: want %s got %s", ErrChecksumMismatch, m.Checksum, got)
	}

	var a Artifact
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaIncompatible, err)
	}
	return &a, nil
}

func parseArtifactURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("manifest: bad artifact_uri %q: %w", uri, err)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// Load resolves (country, rulesetKey) to a compiled ruleset. registry is
// the currently active field registry; customFields declares field names
// the artifact's conditions may reference without a registry entry
// ("slow leaves").
func (l *Loader) Load(ctx context.Context, registry *fieldreg.Registry, customFields map[string]bool, country, rulesetKey string) (*ruleset.Ruleset, error) {
	m, err := l.fetchManifest(ctx, country, rulesetKey)
	if err != nil {
		return nil, err
	}
	if m.FieldRegistryVersion > registry.Version() {
		return nil, fmt.Errorf("%w: manifest needs field registry version %d, active is %d", ErrSchemaIncompatible, m.FieldRegistryVersion, registry.Version())
	}

	artifact, err := l.fetchArtifact(ctx, m)
	if err != nil {
		return nil, err
	}

	rules := make([]ruleset.Rule, 0, len(artifact.Rules))
	for _, raw := range artifact.Rules {
		r, err := compileRule(raw, registry, customFields)
		if err != nil {
			return nil, fmt.Errorf("manifest: rule %s: %w", raw.RuleID, err)
		}
		rules = append(rules, r)
	}

	ruleset.SortRules(rules)
	return ruleset.New(rulesetKey, m.RulesetVersion, artifact.RulesetKey, artifact.ExecutionMode, rules), nil
}

func compileRule(raw RawRule, registry *fieldreg.Registry, customFields map[string]bool) (ruleset.Rule, error) {
	var node condition.Node
	if err := json.Unmarshal(raw.Condition, &node); err != nil {
		return ruleset.Rule{}, fmt.Errorf("%w: %v", condition.ErrBadValue, err)
	}

	predicate, err := condition.Compile(node, registry, customFields)
	if err != nil {
		return ruleset.Rule{}, err
	}

	r := ruleset.Rule{
		RuleID:    raw.RuleID,
		Priority:  raw.Priority,
		Enabled:   raw.Enabled,
		Predicate: predicate,
		Action:    ruleset.Action(raw.Action),
	}

	if raw.Scope != nil {
		r.Scope = ruleset.Scope{
			Network: toSet(raw.Scope.Network),
			BIN:     toSet(raw.Scope.BIN),
			MCC:     toSet(raw.Scope.MCC),
			Logo:    toSet(raw.Scope.Logo),
		}
	}

	if raw.Velocity != nil {
		r.Velocity = &ruleset.VelocityConfig{
			Dimension:     raw.Velocity.Dimension,
			WindowSeconds: raw.Velocity.WindowSeconds,
			Threshold:     raw.Velocity.Threshold,
			Action:        ruleset.Action(raw.Velocity.Action),
		}
	}

	return r, nil
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
