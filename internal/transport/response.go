package transport

import "github.com/cardguard/fraudengine/internal/evaluator"

// slimResponse is the `/v1/evaluate/auth` response envelope per §6: just
// enough for the caller's authorization path to act on. Matched rules and
// velocity detail travel in the outbox event, not back to the caller.
type slimResponse struct {
	TransactionID   string              `json:"transaction_id"`
	Decision        string              `json:"decision"`
	EngineMode      evaluator.EngineMode `json:"engine_mode"`
	EngineErrorCode evaluator.ErrorCode  `json:"engine_error_code,omitempty"`
}

func toSlimResponse(d evaluator.Decision) slimResponse {
	return slimResponse{
		TransactionID:   d.TransactionID,
		Decision:        d.Decision,
		EngineMode:      d.EngineMode,
		EngineErrorCode: d.EngineErrorCode,
	}
}

// replayResponse is the richer envelope returned from the replay endpoint,
// where callers are deliberately inspecting the matched rule and ruleset
// version rather than just acting on the decision. Replay skips velocity
// clauses, so velocity_results is always omitted here.
type replayResponse struct {
	slimResponse
	DecisionID      string                        `json:"decision_id"`
	RulesetKey      string                        `json:"ruleset_key"`
	RulesetVersion  int                           `json:"ruleset_version"`
	MatchedRuleID   string                        `json:"matched_rule_id,omitempty"`
	VelocityResults []evaluator.VelocityOutcome   `json:"velocity_results,omitempty"`
	ProcessingMs    float64                       `json:"processing_time_ms"`
}

func toReplayResponse(d evaluator.Decision) replayResponse {
	return replayResponse{
		slimResponse:    toSlimResponse(d),
		DecisionID:      d.DecisionID,
		RulesetKey:      d.RulesetKey,
		RulesetVersion:  d.RulesetVersion,
		MatchedRuleID:   d.MatchedRuleID,
		VelocityResults: d.VelocityResults,
		ProcessingMs:    d.ProcessingTimeMs,
	}
}
