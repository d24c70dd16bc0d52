// Package evaluator implements the Rule Evaluator (C7): a pure function
// over (TransactionContext, CompiledRuleset) producing a Decision, with
// scope-bucket filtering, first-match-wins predicate evaluation, and
// velocity integration.
package evaluator

// EngineMode classifies how the engine arrived at a decision.
type EngineMode string

const (
	ModeNormal   EngineMode = "NORMAL"
	ModeDegraded EngineMode = "DEGRADED"
	ModeFailOpen EngineMode = "FAIL_OPEN"
	ModeReplay   EngineMode = "REPLAY"
)

// ErrorCode enumerates engine_error_code values.
type ErrorCode string

const (
	ErrRulesetNotLoaded ErrorCode = "RULESET_NOT_LOADED"
	ErrRedisUnavailable ErrorCode = "REDIS_UNAVAILABLE"
	ErrEvaluationError  ErrorCode = "EVALUATION_ERROR"
	ErrLoadShedding     ErrorCode = "LOAD_SHEDDING"
)

// Decision is the response envelope (§3).
type Decision struct {
	DecisionID       string
	TransactionID    string
	Decision         string // APPROVE | DECLINE
	EngineMode       EngineMode
	EngineErrorCode  ErrorCode
	RulesetKey       string
	RulesetVersion   int
	ProcessingTimeMs float64
	MatchedRuleID    string
	VelocityResults  []VelocityOutcome
}

// VelocityOutcome records one velocity check performed during evaluation,
// for the Decision envelope and the outbox event payload.
type VelocityOutcome struct {
	Dimension      string
	DimensionValue string
	Count          int64
	Threshold      uint32
	WindowSeconds  uint32
	Exceeded       bool
}

const (
	decisionApprove = "APPROVE"
	decisionDecline = "DECLINE"

	reasonDefaultAllow = "DEFAULT_ALLOW"
)

// ShedDecision synthesizes the in-band degraded response the load shedder
// returns when it rejects a request outright: APPROVE, DEGRADED,
// LOAD_SHEDDING. No ruleset was consulted and no outbox event should be
// enqueued for it.
func ShedDecision(transactionID string) Decision {
	return Decision{
		TransactionID:   transactionID,
		Decision:        decisionApprove,
		EngineMode:      ModeDegraded,
		EngineErrorCode: ErrLoadShedding,
	}
}
