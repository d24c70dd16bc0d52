package fieldreg

// DefaultFields returns the standard Transaction Context attributes named
// in §3 of the spec, in a stable order. Deployments with a published
// field-registry artifact use that instead; this list backs the startup
// loader's bootstrap registry and tests that don't round-trip a real
// artifact.
func DefaultFields() []Field {
	allOps := func(ops ...Operator) map[Operator]bool {
		m := make(map[Operator]bool, len(ops))
		for _, op := range ops {
			m[op] = true
		}
		return m
	}

	stringOps := allOps(OpEQ, OpNE, OpIN, OpNOTIN, OpCONTAINS, OpSTARTSWITH, OpENDSWITH, OpREGEX, OpEXISTS)
	numberOps := allOps(OpEQ, OpNE, OpGT, OpGTE, OpLT, OpLTE, OpBETWEEN, OpIN, OpNOTIN, OpEXISTS)

	return []Field{
		{Name: "transaction_id", DataType: TypeString, AllowedOperators: stringOps},
		{Name: "card_hash", DataType: TypeString, AllowedOperators: stringOps, Sensitive: true},
		{Name: "amount", DataType: TypeNumber, AllowedOperators: numberOps},
		{Name: "currency", DataType: TypeString, AllowedOperators: stringOps},
		{Name: "country_code", DataType: TypeString, AllowedOperators: stringOps},
		{Name: "merchant_category_code", DataType: TypeString, AllowedOperators: stringOps},
		{Name: "card_network", DataType: TypeString, AllowedOperators: stringOps},
		{Name: "card_bin", DataType: TypeString, AllowedOperators: stringOps},
		{Name: "card_logo", DataType: TypeString, AllowedOperators: stringOps},
		{Name: "ip_address", DataType: TypeString, AllowedOperators: stringOps, Sensitive: true},
		{Name: "device_id", DataType: TypeString, AllowedOperators: stringOps, Sensitive: true},
		{Name: "timestamp", DataType: TypeNumber, AllowedOperators: numberOps},
	}
}

// BuildDefault constructs the bootstrap Registry from DefaultFields at the
// given version.
func BuildDefault(version int) (*Registry, error) {
	return Build(version, DefaultFields())
}
