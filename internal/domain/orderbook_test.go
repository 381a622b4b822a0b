package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderBookSnapshot_Normalized(t *testing.T) {
	raw := OrderBookSnapshot{
		Symbol: "X",
		Bids: []PriceLevel{
			{Price: 98, Quantity: 1},
			{Price: 99, Quantity: 0},
			{Price: 99.5, Quantity: 2},
			{Price: math.NaN(), Quantity: 1},
		},
		Asks: []PriceLevel{
			{Price: 105, Quantity: 5},
			{Price: 100, Quantity: 5},
			{Price: 0, Quantity: 3},
			{Price: 101, Quantity: math.Inf(1)},
			{Price: 102, Quantity: -1},
		},
	}

	got := raw.Normalized()
	assert.Equal(t, []PriceLevel{{Price: 99.5, Quantity: 2}, {Price: 98, Quantity: 1}}, got.Bids)
	assert.Equal(t, []PriceLevel{{Price: 100, Quantity: 5}, {Price: 105, Quantity: 5}}, got.Asks)
	assert.Equal(t, "X", got.Symbol)

	// The caller's slices are left alone.
	assert.Equal(t, 105.0, raw.Asks[0].Price)
	assert.Len(t, raw.Bids, 4)
}

func TestFirstLiquid(t *testing.T) {
	assert.Equal(t, -1, FirstLiquid(nil))
	assert.Equal(t, -1, FirstLiquid([]PriceLevel{{Price: 100, Quantity: 0}}))
	assert.Equal(t, 1, FirstLiquid([]PriceLevel{{Price: 100, Quantity: 0}, {Price: 100, Quantity: 5}}))
}
