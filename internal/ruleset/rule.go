// Package ruleset holds the Compiled Rule / Compiled Ruleset types (C3):
// pre-sorted rules with per-rule compiled predicates and a scope-bucket
// index for fast eligibility filtering.
package ruleset

import "github.com/cardguard/fraudengine/internal/condition"

// Action is the terminal decision a rule (or its velocity clause) applies.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionDecline Action = "DECLINE"
)

// Dimension is one of the four scope axes a rule may be constrained on.
type Dimension string

const (
	DimNetwork Dimension = "network"
	DimBIN     Dimension = "bin"
	DimMCC     Dimension = "mcc"
	DimLogo    Dimension = "logo"
)

// DimensionOrder is the fixed tie-break order used by the comparator and
// by the scope-bucket key.
var DimensionOrder = []Dimension{DimNetwork, DimBIN, DimMCC, DimLogo}

// Scope constrains a rule to transactions whose values fall in the allowed
// sets for each constrained dimension. OR within a dimension, AND across
// dimensions. An absent dimension is unconstrained. An empty Scope means
// the rule is GLOBAL.
type Scope struct {
	Network map[string]struct{}
	BIN     map[string]struct{}
	MCC     map[string]struct{}
	Logo    map[string]struct{}
}

// IsGlobal reports whether the scope constrains no dimension.
func (s Scope) IsGlobal() bool {
	return len(s.Network) == 0 && len(s.BIN) == 0 && len(s.MCC) == 0 && len(s.Logo) == 0
}

// Specificity is the number of dimensions this scope constrains.
func (s Scope) Specificity() int {
	n := 0
	if len(s.Network) > 0 {
		n++
	}
	if len(s.BIN) > 0 {
		n++
	}
	if len(s.MCC) > 0 {
		n++
	}
	if len(s.Logo) > 0 {
		n++
	}
	return n
}

// constrainedMask returns a bit per dimension in DimensionOrder, set when
// that dimension is constrained — used for the fixed-order tie-break.
// Earlier dimensions get the more significant bits so a plain integer
// comparison favors a rule constrained on an earlier dimension.
func (s Scope) constrainedMask() uint8 {
	var mask uint8
	if len(s.Network) > 0 {
		mask |= 1 << 3
	}
	if len(s.BIN) > 0 {
		mask |= 1 << 2
	}
	if len(s.MCC) > 0 {
		mask |= 1 << 1
	}
	if len(s.Logo) > 0 {
		mask |= 1 << 0
	}
	return mask
}

// Matches reports whether the given scope-key values satisfy this scope.
func (s Scope) Matches(network, bin, mcc, logo string) bool {
	if len(s.Network) > 0 {
		if _, ok := s.Network[network]; !ok {
			return false
		}
	}
	if len(s.BIN) > 0 {
		if _, ok := s.BIN[bin]; !ok {
			return false
		}
	}
	if len(s.MCC) > 0 {
		if _, ok := s.MCC[mcc]; !ok {
			return false
		}
	}
	if len(s.Logo) > 0 {
		if _, ok := s.Logo[logo]; !ok {
			return false
		}
	}
	return true
}

// VelocityConfig is a rule's optional velocity clause.
type VelocityConfig struct {
	Dimension     string
	WindowSeconds uint32
	Threshold     uint32
	Action        Action
}

// Rule is a single compiled rule: its predicate is a closure already
// resolved against the field registry in force when the ruleset was
// compiled.
type Rule struct {
	RuleID         string
	Priority       int32
	Enabled        bool
	Scope          Scope
	Predicate      condition.Predicate
	Action         Action
	DecisionReason string
	Velocity       *VelocityConfig
}
