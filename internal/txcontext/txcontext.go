// Package txcontext defines the immutable per-request Transaction Context
// passed to the condition compiler's predicates and the rule evaluator.
package txcontext

import "github.com/cardguard/fraudengine/internal/fieldreg"

// Slot holds one typed field value. Only one of the typed fields is
// meaningful, selected by Kind.
type Slot struct {
	Present bool
	Kind    fieldreg.DataType
	Str     string
	Num     float64
	Bool    bool
}

// Context is an immutable per-request record: a dense array of slot values
// indexed by field ID, plus a map for fields not present in the field
// registry ("custom fields"). Exclusively owned by the handling request;
// not shared across goroutines after construction.
type Context struct {
	TransactionID  string
	registryVer    int
	slots          []Slot
	custom         map[string]string
}

// New allocates a Context sized for the given registry version.
func New(registry *fieldreg.Registry, transactionID string) *Context {
	return &Context{
		TransactionID: transactionID,
		registryVer:   registry.Version(),
		slots:         make([]Slot, registry.Len()),
		custom:        make(map[string]string),
	}
}

// RegistryVersion returns the field-registry version this context's slot
// array was allocated against. The evaluator does not compare it with the
// version a ruleset was compiled against; a compiled leaf that reads a
// slot past the end of a smaller slot array evaluates to false.
func (c *Context) RegistryVersion() int {
	return c.registryVer
}

// SetString stores a string value at the given slot.
func (c *Context) SetString(id uint16, v string) {
	c.slots[id] = Slot{Present: true, Kind: fieldreg.TypeString, Str: v}
}

// SetNumber stores a numeric value at the given slot.
func (c *Context) SetNumber(id uint16, v float64) {
	c.slots[id] = Slot{Present: true, Kind: fieldreg.TypeNumber, Num: v}
}

// SetBool stores a boolean value at the given slot.
func (c *Context) SetBool(id uint16, v bool) {
	c.slots[id] = Slot{Present: true, Kind: fieldreg.TypeBool, Bool: v}
}

// SetCustom stores a value for a field the registry does not know about.
func (c *Context) SetCustom(name, v string) {
	c.custom[name] = v
}

// Slot returns the slot value at the given field ID.
func (c *Context) Slot(id uint16) Slot {
	return c.slots[id]
}

// Custom returns a custom-field value by name.
func (c *Context) Custom(name string) (string, bool) {
	v, ok := c.custom[name]
	return v, ok
}
