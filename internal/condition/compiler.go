// Package condition compiles a ruleset artifact's condition AST into a
// single predicate closure per rule, resolving field names to slot IDs
// once at load time and capturing typed constants so evaluation never
// re-parses a literal or recompiles a pattern.
package condition

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cardguard/fraudengine/internal/fieldreg"
	"github.com/cardguard/fraudengine/internal/txcontext"
)

// Predicate is a compiled condition: a pure function over a transaction
// context. Predicates never panic — any internal error degrades to false
// for that leaf, per the evaluator's contract.
type Predicate func(*txcontext.Context) bool

// setCardinalityForHash is the minimum number of IN/NOT_IN values at which
// the compiler builds a hash-set lookup instead of a linear scan.
const setCardinalityForHash = 8

// Compile translates a condition tree into a single predicate closure.
// customFields declares names that are tolerated even though the registry
// doesn't know them — resolved at evaluation time via the context's custom
// map ("slow leaves"). Any other unresolved name fails the whole compile
// with ErrUnresolvedField, which the ruleset loader maps to the
// UNRESOLVED_FIELD load failure.
func Compile(n Node, registry *fieldreg.Registry, customFields map[string]bool) (Predicate, error) {
	if !n.IsLeaf() {
		return compileComposite(n, registry, customFields)
	}
	leaf, err := compileLeaf(n, registry, customFields)
	if err != nil {
		return nil, err
	}
	return func(ctx *txcontext.Context) bool {
		return safeEval(leaf, ctx)
	}, nil
}

func compileComposite(n Node, registry *fieldreg.Registry, customFields map[string]bool) (Predicate, error) {
	switch {
	case n.Not != nil:
		inner, err := Compile(*n.Not, registry, customFields)
		if err != nil {
			return nil, err
		}
		return func(ctx *txcontext.Context) bool {
			return !safeEval(inner, ctx)
		}, nil

	case len(n.And) > 0:
		preds := make([]Predicate, len(n.And))
		for i, child := range n.And {
			p, err := Compile(child, registry, customFields)
			if err != nil {
				return nil, err
			}
			preds[i] = p
		}
		return func(ctx *txcontext.Context) bool {
			for _, p := range preds {
				if !safeEval(p, ctx) {
					return false
				}
			}
			return true
		}, nil

	case len(n.Or) > 0:
		preds := make([]Predicate, len(n.Or))
		for i, child := range n.Or {
			p, err := Compile(child, registry, customFields)
			if err != nil {
				return nil, err
			}
			preds[i] = p
		}
		return func(ctx *txcontext.Context) bool {
			for _, p := range preds {
				if safeEval(p, ctx) {
					return true
				}
			}
			return false
		}, nil
	}
	return nil, fmt.Errorf("condition: empty composite node")
}

// safeEval wraps a compiled predicate with the leaf-level contract: a
// panicking predicate degrades to false rather than escaping to the
// evaluator.
func safeEval(p Predicate, ctx *txcontext.Context) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()
	return p(ctx)
}

func compileLeaf(n Node, registry *fieldreg.Registry, customFields map[string]bool) (Predicate, error) {
	op := fieldreg.Operator(n.Op)

	field, ok := registry.Resolve(n.Field)
	if !ok {
		if !customFields[n.Field] {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedField, n.Field)
		}
		return compileSlowLeaf(n.Field, op, n.Value, n.Values)
	}

	if len(field.AllowedOperators) > 0 && !field.SupportsOperator(op) {
		return nil, fmt.Errorf("%w: %s on field %s", ErrUnknownOperator, n.Op, n.Field)
	}

	switch op {
	case fieldreg.OpEXISTS:
		id := field.ID
		return func(ctx *txcontext.Context) bool {
			return ctx.Slot(id).Present
		}, nil

	case fieldreg.OpIN, fieldreg.OpNOTIN:
		return compileSetLeaf(field, op, n.Values)

	case fieldreg.OpBETWEEN:
		return compileBetweenLeaf(field, n.Values)

	case fieldreg.OpREGEX:
		return compileRegexLeaf(field, n.Value)

	default:
		return compileScalarLeaf(field, op, n.Value)
	}
}

func decodeStrings(raw json.RawMessage) ([]string, error) {
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	return ss, nil
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	return f, nil
}

func decodeScalar(raw json.RawMessage) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	return v, nil
}

func compileSetLeaf(field fieldreg.Field, op fieldreg.Operator, raw json.RawMessage) (Predicate, error) {
	values, err := decodeStrings(raw)
	if err != nil {
		return nil, err
	}

	id := field.ID
	negate := op == fieldreg.OpNOTIN

	if len(values) >= setCardinalityForHash {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		return func(ctx *txcontext.Context) bool {
			s := ctx.Slot(id)
			if !s.Present {
				return false
			}
			_, member := set[s.Str]
			if negate {
				return !member
			}
			return member
		}, nil
	}

	return func(ctx *txcontext.Context) bool {
		s := ctx.Slot(id)
		if !s.Present {
			return false
		}
		member := false
		for _, v := range values {
			if v == s.Str {
				member = true
				break
			}
		}
		if negate {
			return !member
		}
		return member
	}, nil
}

func compileBetweenLeaf(field fieldreg.Field, raw json.RawMessage) (Predicate, error) {
	var nums []float64
	if err := json.Unmarshal(raw, &nums); err != nil || len(nums) != 2 {
		return nil, fmt.Errorf("%w: BETWEEN requires two numeric bounds", ErrBadValue)
	}
	lo, hi := nums[0], nums[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	id := field.ID
	return func(ctx *txcontext.Context) bool {
		s := ctx.Slot(id)
		if !s.Present {
			return false
		}
		return s.Num >= lo && s.Num <= hi
	}, nil
}

func compileRegexLeaf(field fieldreg.Field, raw json.RawMessage) (Predicate, error) {
	var pattern string
	if err := json.Unmarshal(raw, &pattern); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid regex %q: %v", ErrBadValue, pattern, err)
	}
	id := field.ID
	return func(ctx *txcontext.Context) bool {
		s := ctx.Slot(id)
		if !s.Present {
			return false
		}
		return re.MatchString(s.Str)
	}, nil
}

func compileScalarLeaf(field fieldreg.Field, op fieldreg.Operator, raw json.RawMessage) (Predicate, error) {
	id := field.ID

	if field.DataType == fieldreg.TypeNumber {
		num, err := decodeNumber(raw)
		if err != nil {
			return nil, err
		}
		return func(ctx *txcontext.Context) bool {
			s := ctx.Slot(id)
			if !s.Present {
				return false
			}
			return compareNumber(op, s.Num, num)
		}, nil
	}

	val, err := decodeScalar(raw)
	if err != nil {
		return nil, err
	}
	strVal := fmt.Sprintf("%v", val)

	return func(ctx *txcontext.Context) bool {
		s := ctx.Slot(id)
		if !s.Present {
			return false
		}
		return compareString(op, s.Str, strVal)
	}, nil
}

func compareNumber(op fieldreg.Operator, a, b float64) bool {
	switch op {
	case fieldreg.OpEQ:
		return a == b
	case fieldreg.OpNE:
		return a != b
	case fieldreg.OpGT:
		return a > b
	case fieldreg.OpGTE:
		return a >= b
	case fieldreg.OpLT:
		return a < b
	case fieldreg.OpLTE:
		return a <= b
	default:
		return false
	}
}

func compareString(op fieldreg.Operator, a, b string) bool {
	switch op {
	case fieldreg.OpEQ:
		return a == b
	case fieldreg.OpNE:
		return a != b
	case fieldreg.OpCONTAINS:
		return strings.Contains(a, b)
	case fieldreg.OpSTARTSWITH:
		return strings.HasPrefix(a, b)
	case fieldreg.OpENDSWITH:
		return strings.HasSuffix(a, b)
	default:
		return false
	}
}

// compileSlowLeaf handles a field the registry doesn't know but the
// ruleset declared as a custom field: a fallback lookup against the
// context's custom map at evaluation time rather than a dense slot read.
func compileSlowLeaf(name string, op fieldreg.Operator, value, values json.RawMessage) (Predicate, error) {
	switch op {
	case fieldreg.OpEXISTS:
		return func(ctx *txcontext.Context) bool {
			_, ok := ctx.Custom(name)
			return ok
		}, nil

	case fieldreg.OpIN, fieldreg.OpNOTIN:
		set, err := decodeStrings(values)
		if err != nil {
			return nil, err
		}
		negate := op == fieldreg.OpNOTIN
		return func(ctx *txcontext.Context) bool {
			v, ok := ctx.Custom(name)
			if !ok {
				return false
			}
			member := false
			for _, s := range set {
				if s == v {
					member = true
					break
				}
			}
			if negate {
				return !member
			}
			return member
		}, nil

	default:
		var literal string
		if err := json.Unmarshal(value, &literal); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
		}
		return func(ctx *txcontext.Context) bool {
			v, ok := ctx.Custom(name)
			if !ok {
				return false
			}
			return compareString(op, v, literal)
		}, nil
	}
}
