package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardguard/fraudengine/internal/fieldreg"
)

func buildTestRegistry(t *testing.T) *fieldreg.Registry {
	t.Helper()
	reg, err := fieldreg.Build(1, []fieldreg.Field{
		{Name: "amount", DataType: fieldreg.TypeNumber},
		{Name: "country_code", DataType: fieldreg.TypeString},
		{Name: "is_recurring", DataType: fieldreg.TypeBool},
	})
	require.NoError(t, err)
	return reg
}

func TestBuildContextRejectsMissingTransactionID(t *testing.T) {
	reg := buildTestRegistry(t)
	_, err := buildContext(reg, evaluateRequest{})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBuildContextResolvesKnownFields(t *testing.T) {
	reg := buildTestRegistry(t)
	req := evaluateRequest{
		TransactionID: "tx-1",
		Fields: map[string]json.RawMessage{
			"amount":       json.RawMessage(`250.5`),
			"country_code": json.RawMessage(`"US"`),
			"is_recurring": json.RawMessage(`true`),
		},
	}
	tx, err := buildContext(reg, req)
	require.NoError(t, err)

	amount, _ := reg.Resolve("amount")
	require.Equal(t, 250.5, tx.Slot(amount.ID).Num)

	country, _ := reg.Resolve("country_code")
	require.Equal(t, "US", tx.Slot(country.ID).Str)

	recurring, _ := reg.Resolve("is_recurring")
	require.True(t, tx.Slot(recurring.ID).Bool)
}

func TestBuildContextRoutesUnknownFieldsToCustomMap(t *testing.T) {
	reg := buildTestRegistry(t)
	req := evaluateRequest{
		TransactionID: "tx-2",
		Fields: map[string]json.RawMessage{
			"risk_tag": json.RawMessage(`"elevated"`),
		},
	}
	tx, err := buildContext(reg, req)
	require.NoError(t, err)

	v, ok := tx.Custom("risk_tag")
	require.True(t, ok)
	require.Equal(t, "elevated", v)
}

func TestBuildContextRejectsTypeMismatch(t *testing.T) {
	reg := buildTestRegistry(t)
	req := evaluateRequest{
		TransactionID: "tx-3",
		Fields: map[string]json.RawMessage{
			"amount": json.RawMessage(`"not-a-number"`),
		},
	}
	_, err := buildContext(reg, req)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRawToStringRendersScalars(t *testing.T) {
	s, err := rawToString(json.RawMessage(`"hello"`))
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	s, err = rawToString(json.RawMessage(`true`))
	require.NoError(t, err)
	require.Equal(t, "true", s)

	_, err = rawToString(json.RawMessage(`{"nested":1}`))
	require.Error(t, err)
}
