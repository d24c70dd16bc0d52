package condition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardguard/fraudengine/internal/fieldreg"
	"github.com/cardguard/fraudengine/internal/txcontext"
)

func testRegistry(t *testing.T) *fieldreg.Registry {
	t.Helper()
	reg, err := fieldreg.Build(1, []fieldreg.Field{
		{Name: "amount", DataType: fieldreg.TypeNumber},
		{Name: "country_code", DataType: fieldreg.TypeString},
		{Name: "merchant_category_code", DataType: fieldreg.TypeString},
	})
	require.NoError(t, err)
	return reg
}

func raw(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func TestCompileScalarComparisons(t *testing.T) {
	reg := testRegistry(t)
	amount, _ := reg.Resolve("amount")

	pred, err := Compile(Node{Field: "amount", Op: "GT", Value: raw(100)}, reg, nil)
	require.NoError(t, err)

	ctx := txcontext.New(reg, "t1")
	ctx.SetNumber(amount.ID, 150)
	require.True(t, pred(ctx))

	ctx2 := txcontext.New(reg, "t2")
	ctx2.SetNumber(amount.ID, 50)
	require.False(t, pred(ctx2))
}

func TestCompileInUsesHashSetAboveThreshold(t *testing.T) {
	reg := testRegistry(t)
	country, _ := reg.Resolve("country_code")

	values := make([]string, setCardinalityForHash+1)
	for i := range values {
		values[i] = string(rune('A' + i))
	}
	pred, err := Compile(Node{Field: "country_code", Op: "IN", Values: raw(values)}, reg, nil)
	require.NoError(t, err)

	ctx := txcontext.New(reg, "t1")
	ctx.SetString(country.ID, values[0])
	require.True(t, pred(ctx))

	ctx2 := txcontext.New(reg, "t2")
	ctx2.SetString(country.ID, "ZZ")
	require.False(t, pred(ctx2))
}

func TestCompileNotInNegatesMembership(t *testing.T) {
	reg := testRegistry(t)
	country, _ := reg.Resolve("country_code")

	pred, err := Compile(Node{Field: "country_code", Op: "NOT_IN", Values: raw([]string{"US", "CA"})}, reg, nil)
	require.NoError(t, err)

	ctx := txcontext.New(reg, "t1")
	ctx.SetString(country.ID, "FR")
	require.True(t, pred(ctx))

	ctx2 := txcontext.New(reg, "t2")
	ctx2.SetString(country.ID, "US")
	require.False(t, pred(ctx2))
}

func TestCompileBetweenSwapsInvertedBounds(t *testing.T) {
	reg := testRegistry(t)
	amount, _ := reg.Resolve("amount")

	pred, err := Compile(Node{Field: "amount", Op: "BETWEEN", Values: raw([]float64{100, 10})}, reg, nil)
	require.NoError(t, err)

	ctx := txcontext.New(reg, "t1")
	ctx.SetNumber(amount.ID, 50)
	require.True(t, pred(ctx))
}

func TestCompileAndOrNot(t *testing.T) {
	reg := testRegistry(t)
	amount, _ := reg.Resolve("amount")
	mcc, _ := reg.Resolve("merchant_category_code")

	n := Node{And: []Node{
		{Field: "amount", Op: "GT", Value: raw(1000)},
		{Not: &Node{Field: "merchant_category_code", Op: "EQ", Value: raw("5411")}},
	}}
	pred, err := Compile(n, reg, nil)
	require.NoError(t, err)

	ctx := txcontext.New(reg, "t1")
	ctx.SetNumber(amount.ID, 2000)
	ctx.SetString(mcc.ID, "7995")
	require.True(t, pred(ctx))

	ctx2 := txcontext.New(reg, "t2")
	ctx2.SetNumber(amount.ID, 2000)
	ctx2.SetString(mcc.ID, "5411")
	require.False(t, pred(ctx2))
}

func TestCompileUnresolvedFieldFails(t *testing.T) {
	reg := testRegistry(t)
	_, err := Compile(Node{Field: "not_a_field", Op: "EQ", Value: raw("x")}, reg, nil)
	require.ErrorIs(t, err, ErrUnresolvedField)
}

func TestCompileSlowLeafCustomField(t *testing.T) {
	reg := testRegistry(t)
	pred, err := Compile(Node{Field: "risk_tag", Op: "EQ", Value: raw("high")}, reg, map[string]bool{"risk_tag": true})
	require.NoError(t, err)

	ctx := txcontext.New(reg, "t1")
	ctx.SetCustom("risk_tag", "high")
	require.True(t, pred(ctx))

	ctx2 := txcontext.New(reg, "t2")
	require.False(t, pred(ctx2))
}

func TestCompileAbsentFieldIsFalseNotPanic(t *testing.T) {
	reg := testRegistry(t)
	pred, err := Compile(Node{Field: "amount", Op: "GT", Value: raw(10)}, reg, nil)
	require.NoError(t, err)

	ctx := txcontext.New(reg, "t1")
	require.False(t, pred(ctx))
}

func TestSafeEvalRecoversFromPanic(t *testing.T) {
	panicky := Predicate(func(*txcontext.Context) bool {
		panic("boom")
	})
	require.False(t, safeEval(panicky, nil))
}

func TestCompileBadRegexFails(t *testing.T) {
	reg := testRegistry(t)
	_, err := Compile(Node{Field: "country_code", Op: "REGEX", Value: raw("[")}, reg, nil)
	require.ErrorIs(t, err, ErrBadValue)
}
