package repository

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
)

func TestItemsCodec(t *testing.T) {
	items := []order.Item{
		{ProductID: "p1", Name: "Mug \"classic\"", Quantity: 2, Price: decimal.RequireFromString("9.99")},
		{ProductID: "p2", Name: "Tee", Quantity: 1, Price: decimal.RequireFromString("0.10")},
	}

	raw := encodeItems(items)
	assert.Contains(t, string(raw), `"price":"9.99"`)

	got, err := decodeItems(raw)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, `Mug "classic"`, got[0].Name)
	assert.True(t, got[1].Price.Equal(items[1].Price))
}

func TestDecodeItems_NumericPrice(t *testing.T) {
	got, err := decodeItems([]byte(`[{"productId":"p1","quantity":3,"price":12.5,"sku":"x"}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Quantity)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("12.5")))

	got, err = decodeItems(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCheckWritable(t *testing.T) {
	fixed := coupon.Rule{Coupon: coupon.Coupon{Code: "F", Type: coupon.TypeFixed}}
	require.NoError(t, checkWritable(fixed))

	fixed.MaxDiscount = decimal.NewNullDecimal(decimal.NewFromInt(5))
	require.ErrorContains(t, checkWritable(fixed), "maximum discount")

	require.ErrorContains(t, checkWritable(coupon.Rule{Coupon: coupon.Coupon{Code: "B", Type: "bogus"}}), "unsupported type")
}
