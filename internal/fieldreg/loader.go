package fieldreg

import (
	"context"
	"encoding/json"
	"fmt"
)

// ObjectStore is the narrow interface the field-registry loader needs,
// mirroring manifest.ObjectStore — kept as its own declaration so this
// package never depends on manifest (manifest already depends on
// fieldreg for rule compilation).
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// artifactField is the wire shape of one field-registry artifact entry.
type artifactField struct {
	Name             string   `json:"name"`
	DataType         string   `json:"data_type"`
	AllowedOperators []string `json:"allowed_operators"`
	MultiValued      bool     `json:"multi_valued"`
	Sensitive        bool     `json:"sensitive"`
}

type artifact struct {
	Version int             `json:"version"`
	Fields  []artifactField `json:"fields"`
}

// Load fetches and parses a published field-registry artifact from the
// object store (Startup Loader §4.9 step 1). Field order in the artifact
// determines slot-ID assignment, same as Build.
func Load(ctx context.Context, store ObjectStore, bucket, key string) (*Registry, error) {
	body, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("fieldreg: fetch artifact: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("fieldreg: parse artifact: %w", err)
	}

	fields := make([]Field, len(a.Fields))
	for i, af := range a.Fields {
		dt, err := parseDataType(af.DataType)
		if err != nil {
			return nil, fmt.Errorf("fieldreg: field %q: %w", af.Name, err)
		}
		ops := make(map[Operator]bool, len(af.AllowedOperators))
		for _, op := range af.AllowedOperators {
			ops[Operator(op)] = true
		}
		fields[i] = Field{
			Name:             af.Name,
			DataType:         dt,
			AllowedOperators: ops,
			MultiValued:      af.MultiValued,
			Sensitive:        af.Sensitive,
		}
	}

	return Build(a.Version, fields)
}

func parseDataType(s string) (DataType, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "number":
		return TypeNumber, nil
	case "bool":
		return TypeBool, nil
	default:
		return 0, fmt.Errorf("unknown data_type %q", s)
	}
}
