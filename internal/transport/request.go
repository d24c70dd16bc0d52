package transport

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cardguard/fraudengine/internal/fieldreg"
	"github.com/cardguard/fraudengine/internal/txcontext"
)

// evaluateRequest is the transport-level JSON body for both
// /v1/evaluate/auth and /v1/evaluate/replay.
type evaluateRequest struct {
	TransactionID string                     `json:"transaction_id"`
	Country       string                     `json:"country"`
	RulesetKey    string                     `json:"ruleset_key"`
	Fields        map[string]json.RawMessage `json:"fields"`
}

// buildContext resolves each field in the request body against the field
// registry, routing unrecognized names into the custom-field map rather
// than rejecting the request — the condition compiler's "slow leaf" path
// exists precisely so new attributes can flow through before a field
// registry publish catches up.
func buildContext(registry *fieldreg.Registry, req evaluateRequest) (*txcontext.Context, error) {
	if req.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction_id is required", ErrInvalidRequest)
	}

	tx := txcontext.New(registry, req.TransactionID)

	for name, raw := range req.Fields {
		field, ok := registry.Resolve(name)
		if !ok {
			s, err := rawToString(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidRequest, name, err)
			}
			tx.SetCustom(name, s)
			continue
		}

		switch field.DataType {
		case fieldreg.TypeString:
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("%w: field %q expects a string", ErrInvalidRequest, name)
			}
			tx.SetString(field.ID, v)
		case fieldreg.TypeNumber:
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("%w: field %q expects a number", ErrInvalidRequest, name)
			}
			tx.SetNumber(field.ID, v)
		case fieldreg.TypeBool:
			var v bool
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("%w: field %q expects a bool", ErrInvalidRequest, name)
			}
			tx.SetBool(field.ID, v)
		default:
			return nil, fmt.Errorf("%w: field %q has an unknown data type", ErrInvalidRequest, name)
		}
	}

	return tx, nil
}

// rawToString renders a JSON scalar as its custom-field string form.
// Objects and arrays are rejected: custom fields are flat key/value pairs.
func rawToString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strings.TrimSpace(string(raw)), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "true", nil
		}
		return "false", nil
	}
	return "", fmt.Errorf("unsupported value %s", raw)
}
