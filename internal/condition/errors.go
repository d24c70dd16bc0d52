package condition

import "errors"

// ErrUnresolvedField is returned by Compile when a leaf references a field
// name that is neither in the field registry nor declared as a custom
// field for this ruleset.
var ErrUnresolvedField = errors.New("condition: unresolved field")

// ErrUnknownOperator is returned by Compile when a leaf names an operator
// outside the registry field's declared operator set. A field registered
// without an operator set accepts any operator.
var ErrUnknownOperator = errors.New("condition: unknown operator")

// ErrBadValue is returned when a leaf's value payload cannot be decoded
// for the declared field type/operator combination.
var ErrBadValue = errors.New("condition: malformed value")
