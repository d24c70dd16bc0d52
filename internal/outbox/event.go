// Package outbox implements the asynchronous durability pipeline
// (C8-C11): a bounded in-process queue, a writer that appends to a Redis
// Stream, a publisher that forwards acknowledged stream entries to Kafka,
// and a reclaimer that recovers stalled pending entries.
package outbox

import (
	"time"

	"github.com/cardguard/fraudengine/internal/evaluator"
)

// Event is the Outbox Event (§3): produced by the request thread, owned
// by the durability pipeline thereafter.
type Event struct {
	TransactionID  string                       `json:"transaction_id"`
	Decision       string                       `json:"decision"`
	EngineMode     evaluator.EngineMode         `json:"engine_mode"`
	ErrorCode      evaluator.ErrorCode          `json:"engine_error_code,omitempty"`
	RulesetKey     string                       `json:"ruleset_key"`
	RulesetVersion int                          `json:"ruleset_version"`
	MatchedRuleID  string                       `json:"matched_rule_id,omitempty"`
	VelocitySnap   []evaluator.VelocityOutcome  `json:"velocity_snapshot,omitempty"`
	OccurredAt     time.Time                    `json:"occurred_at"`
	ProducedAt     time.Time                    `json:"produced_at"`
}

// FromDecision builds an Event from a completed Decision. occurredAt is
// the time the underlying transaction happened (request entry);
// producedAt is stamped as time.Now() by the caller at enqueue time.
func FromDecision(d evaluator.Decision, occurredAt, producedAt time.Time) Event {
	return Event{
		TransactionID:  d.TransactionID,
		Decision:       d.Decision,
		EngineMode:     d.EngineMode,
		ErrorCode:      d.EngineErrorCode,
		RulesetKey:     d.RulesetKey,
		RulesetVersion: d.RulesetVersion,
		MatchedRuleID:  d.MatchedRuleID,
		VelocitySnap:   d.VelocityResults,
		OccurredAt:     occurredAt,
		ProducedAt:     producedAt,
	}
}
