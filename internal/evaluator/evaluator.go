package evaluator

import (
	"context"
	"log/slog"
	"time"

	"github.com/cardguard/fraudengine/internal/fieldreg"
	"github.com/cardguard/fraudengine/internal/ruleset"
	"github.com/cardguard/fraudengine/internal/txcontext"
	"github.com/cardguard/fraudengine/internal/velocity"
)

// Canonical field names used to derive the scope-key tuple (network, bin,
// mcc, logo). These are ordinary entries in the field registry like any
// other attribute.
const (
	FieldCardNetwork = "card_network"
	FieldCardBIN     = "card_bin"
	FieldMCC         = "merchant_category_code"
	FieldCardLogo    = "card_logo"
)

// VelocityChecker is the narrow interface the evaluator needs from the
// velocity counter service, so evaluator tests can substitute a fake.
type VelocityChecker interface {
	Check(ctx context.Context, config velocity.Config, value string) (velocity.Result, error)
}

// scopeSlots caches the field IDs for the four scope-key dimensions,
// resolved once per field-registry version rather than on every request.
type scopeSlots struct {
	network, bin, mcc, logo uint16
	ok                      bool
}

func resolveScopeSlots(registry *fieldreg.Registry) scopeSlots {
	var s scopeSlots
	nf, ok1 := registry.Resolve(FieldCardNetwork)
	bf, ok2 := registry.Resolve(FieldCardBIN)
	mf, ok3 := registry.Resolve(FieldMCC)
	lf, ok4 := registry.Resolve(FieldCardLogo)
	s.network, s.bin, s.mcc, s.logo = nf.ID, bf.ID, mf.ID, lf.ID
	s.ok = ok1 && ok2 && ok3 && ok4
	return s
}

// Evaluator is the Rule Evaluator (C7).
type Evaluator struct {
	registry *fieldreg.Registry
	scope    scopeSlots
	velocity VelocityChecker
}

// New constructs an Evaluator bound to a field-registry version. Callers
// build a new Evaluator whenever the field registry is hot-reloaded to a
// new version (rare, compared to ruleset hot swaps).
func New(registry *fieldreg.Registry, vel VelocityChecker) *Evaluator {
	return &Evaluator{
		registry: registry,
		scope:    resolveScopeSlots(registry),
		velocity: vel,
	}
}

// Options modifies a single Evaluate call.
type Options struct {
	// Replay disables all side effects: a matched rule's velocity clause is
	// skipped entirely (the counter is neither incremented nor read, and no
	// velocity result is reported) and engine_mode is forced to REPLAY.
	Replay bool
}

// Evaluate is the single pure function over (ctx, rs) the evaluator
// exposes. It never panics: any predicate or internal panic is recovered
// and translated into a FAIL_OPEN APPROVE with EVALUATION_ERROR.
func (e *Evaluator) Evaluate(ctx context.Context, tx *txcontext.Context, rs *ruleset.Ruleset, opts Options) (decision Decision) {
	start := time.Now()
	decision.TransactionID = tx.TransactionID

	if rs == nil {
		decision.Decision = decisionApprove
		decision.EngineMode = ModeFailOpen
		decision.EngineErrorCode = ErrRulesetNotLoaded
		decision.ProcessingTimeMs = elapsedMs(start)
		return decision
	}
	decision.RulesetKey = rs.RulesetKey
	decision.RulesetVersion = rs.Version

	defer func() {
		if r := recover(); r != nil {
			slog.Error("evaluator: recovered panic", "transaction_id", tx.TransactionID, "panic", r)
			decision.Decision = decisionApprove
			decision.EngineMode = ModeFailOpen
			decision.EngineErrorCode = ErrEvaluationError
			decision.MatchedRuleID = ""
			decision.ProcessingTimeMs = elapsedMs(start)
		}
	}()

	if !e.scope.ok {
		// Scope dimensions aren't registered: every rule behaves as GLOBAL
		// with respect to filtering, so fall back to evaluating the full
		// sorted list in order.
		e.run(ctx, tx, rs, "", "", "", "", opts, &decision)
		decision.ProcessingTimeMs = elapsedMs(start)
		return decision
	}

	network := tx.Slot(e.scope.network).Str
	bin := tx.Slot(e.scope.bin).Str
	mcc := tx.Slot(e.scope.mcc).Str
	logo := tx.Slot(e.scope.logo).Str

	e.run(ctx, tx, rs, network, bin, mcc, logo, opts, &decision)
	decision.ProcessingTimeMs = elapsedMs(start)
	return decision
}

func (e *Evaluator) run(ctx context.Context, tx *txcontext.Context, rs *ruleset.Ruleset, network, bin, mcc, logo string, opts Options, decision *Decision) {
	decision.EngineMode = ModeNormal
	if opts.Replay {
		decision.EngineMode = ModeReplay
	}

	eligible := rs.Eligible(network, bin, mcc, logo)

	for _, rule := range eligible {
		if !rule.Enabled {
			continue
		}
		if !rule.Predicate(tx) {
			continue
		}

		action := rule.Action
		if rule.Velocity != nil {
			value := e.velocityValue(tx, rule.Velocity.Dimension)
			if opts.Replay {
				// Replay never mutates counters; skip velocity entirely.
			} else {
				result, err := e.velocity.Check(ctx, velocity.Config{
					Dimension:     rule.Velocity.Dimension,
					WindowSeconds: rule.Velocity.WindowSeconds,
					Threshold:     rule.Velocity.Threshold,
				}, value)
				if err != nil {
					if decision.EngineMode != ModeReplay {
						decision.EngineMode = ModeFailOpen
					}
					decision.EngineErrorCode = ErrRedisUnavailable
					// Skip this rule's velocity clause only — the rule itself
					// already matched, so its own action still applies — and
					// stop the walk here, per §4.4.
				} else {
					decision.VelocityResults = append(decision.VelocityResults, VelocityOutcome{
						Dimension:      result.Dimension,
						DimensionValue: result.DimensionValue,
						Count:          result.Count,
						Threshold:      result.Threshold,
						WindowSeconds:  result.WindowSeconds,
						Exceeded:       result.Exceeded,
					})
					if result.Exceeded {
						action = rule.Velocity.Action
					}
				}
			}
		}

		decision.Decision = string(action)
		decision.MatchedRuleID = rule.RuleID
		return
	}

	decision.Decision = decisionApprove
}

// velocityValue resolves the dimension field's value for this transaction,
// checking the field registry first and falling back to the custom-field
// map. If neither resolves, the dimension name itself is used as the
// value so the check still runs, just against a key that groups every
// transaction missing that field together.
func (e *Evaluator) velocityValue(tx *txcontext.Context, dimension string) string {
	if field, ok := e.registry.Resolve(dimension); ok {
		if s := tx.Slot(field.ID); s.Present {
			return s.Str
		}
	}
	if v, ok := tx.Custom(dimension); ok {
		return v
	}
	return dimension
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
