package fieldreg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAssignsDenseSlotIDs(t *testing.T) {
	reg, err := Build(3, []Field{
		{Name: "amount", DataType: TypeNumber},
		{Name: "currency", DataType: TypeString},
	})
	require.NoError(t, err)
	require.Equal(t, 3, reg.Version())
	require.Equal(t, 2, reg.Len())

	amount, ok := reg.Resolve("amount")
	require.True(t, ok)
	require.Equal(t, uint16(0), amount.ID)

	currency, ok := reg.Resolve("currency")
	require.True(t, ok)
	require.Equal(t, uint16(1), currency.ID)

	require.Equal(t, currency, reg.ByID(1))
}

func TestBuildRejectsDuplicateNames(t *testing.T) {
	_, err := Build(1, []Field{
		{Name: "amount", DataType: TypeNumber},
		{Name: "amount", DataType: TypeString},
	})
	require.Error(t, err)
}

func TestResolveUnknownFieldIsNotFound(t *testing.T) {
	reg, err := Build(1, []Field{{Name: "amount", DataType: TypeNumber}})
	require.NoError(t, err)

	_, ok := reg.Resolve("not_a_field")
	require.False(t, ok)
}

func TestSupportsOperator(t *testing.T) {
	f := Field{
		Name:             "amount",
		AllowedOperators: map[Operator]bool{OpGT: true, OpGTE: true},
	}
	require.True(t, f.SupportsOperator(OpGT))
	require.False(t, f.SupportsOperator(OpEQ))
}

func TestBuildDefaultCoversTransactionContextAttributes(t *testing.T) {
	reg, err := BuildDefault(1)
	require.NoError(t, err)

	for _, name := range []string{
		"transaction_id", "card_hash", "amount", "currency", "country_code",
		"merchant_category_code", "card_network", "card_bin", "card_logo",
		"ip_address", "device_id", "timestamp",
	} {
		_, ok := reg.Resolve(name)
		require.True(t, ok, "expected default registry to contain %q", name)
	}
}
