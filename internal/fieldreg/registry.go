// Package fieldreg implements the Field Registry (C1): a versioned mapping
// from field name to a small stable slot ID, plus the declared type and
// operator surface for that field.
package fieldreg

import "fmt"

// DataType is the declared value type of a registered field.
type DataType int

const (
	TypeString DataType = iota
	TypeNumber
	TypeBool
)

// Operator enumerates the condition-leaf operators a field may support.
type Operator string

const (
	OpEQ         Operator = "EQ"
	OpNE         Operator = "NE"
	OpGT         Operator = "GT"
	OpGTE        Operator = "GTE"
	OpLT         Operator = "LT"
	OpLTE        Operator = "LTE"
	OpIN         Operator = "IN"
	OpNOTIN      Operator = "NOT_IN"
	OpBETWEEN    Operator = "BETWEEN"
	OpCONTAINS   Operator = "CONTAINS"
	OpSTARTSWITH Operator = "STARTS_WITH"
	OpENDSWITH   Operator = "ENDS_WITH"
	OpREGEX      Operator = "REGEX"
	OpEXISTS     Operator = "EXISTS"
)

// Field describes one entry in the registry.
type Field struct {
	Name             string
	ID               uint16
	DataType         DataType
	AllowedOperators map[Operator]bool
	MultiValued      bool
	Sensitive        bool
}

// SupportsOperator reports whether op is declared for this field.
func (f Field) SupportsOperator(op Operator) bool {
	return f.AllowedOperators[op]
}

// Registry is an immutable, versioned name<->slot-ID mapping. A Registry
// value is never mutated after construction; callers hold a pointer to one
// version, and compiled predicates capture the slot IDs of the version
// they were compiled against.
type Registry struct {
	version int
	byName  map[string]Field
	byID    []Field // indexed by slot ID, dense
}

// Build constructs a Registry from an ordered field list, assigning dense
// slot IDs in list order. Returns an error if a name is duplicated.
func Build(version int, fields []Field) (*Registry, error) {
	byName := make(map[string]Field, len(fields))
	byID := make([]Field, len(fields))
	for i, f := range fields {
		if _, exists := byName[f.Name]; exists {
			return nil, fmt.Errorf("fieldreg: duplicate field name %q", f.Name)
		}
		f.ID = uint16(i)
		byName[f.Name] = f
		byID[i] = f
	}
	return &Registry{version: version, byName: byName, byID: byID}, nil
}

// Version returns the registry's artifact version.
func (r *Registry) Version() int {
	return r.version
}

// Resolve looks up a field by name. The bool is false when the name is not
// registered — callers treat that as a candidate custom field.
func (r *Registry) Resolve(name string) (Field, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// ByID returns the field at the given dense slot ID. Panics if out of range;
// callers only index with IDs they obtained from Resolve on this same
// registry instance.
func (r *Registry) ByID(id uint16) Field {
	return r.byID[id]
}

// Len returns the number of registered fields, i.e. the slot array size a
// TransactionContext built against this registry must allocate.
func (r *Registry) Len() int {
	return len(r.byID)
}
