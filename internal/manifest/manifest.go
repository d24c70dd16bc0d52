// Package manifest defines the manifest-pointer and compiled-ruleset
// artifact wire formats, and the object-store loader (C5) that resolves a
// (country, ruleset_key) pair to a compiled ruleset.Ruleset.
package manifest

import "encoding/json"

// Manifest is the small pointer object at
// rulesets/{env}/{country}/{key}/manifest.json. It names the artifact to
// fetch and the checksum to verify it against.
type Manifest struct {
	SchemaVersion        string `json:"schema_version"`
	Environment          string `json:"environment"`
	Region               string `json:"region"`
	Country              string `json:"country"`
	RulesetKey           string `json:"ruleset_key"`
	RulesetVersion       int    `json:"ruleset_version"`
	FieldRegistryVersion int    `json:"field_registry_version"`
	ArtifactURI          string `json:"artifact_uri"`
	Checksum             string `json:"checksum"`
	PublishedAt          string `json:"published_at"`
}

// Artifact is the immutable compiled-ruleset document at ArtifactURI.
type Artifact struct {
	RulesetKey     string     `json:"ruleset_key"`
	RulesetVersion int        `json:"ruleset_version"`
	ExecutionMode  string     `json:"execution_mode"`
	Rules          []RawRule  `json:"rules"`
}

// RawRule is one uncompiled rule entry from the artifact.
type RawRule struct {
	RuleID    string          `json:"rule_id"`
	Priority  int32           `json:"priority"`
	Enabled   bool            `json:"enabled"`
	Condition json.RawMessage `json:"condition"`
	Action    string          `json:"action"`
	Velocity  *RawVelocity    `json:"velocity,omitempty"`
	Scope     *RawScope       `json:"scope,omitempty"`
}

type RawVelocity struct {
	Dimension     string `json:"dimension"`
	WindowSeconds uint32 `json:"window_seconds"`
	Threshold     uint32 `json:"threshold"`
	Action        string `json:"action"`
}

type RawScope struct {
	Network []string `json:"network,omitempty"`
	BIN     []string `json:"bin,omitempty"`
	MCC     []string `json:"mcc,omitempty"`
	Logo    []string `json:"logo,omitempty"`
}
