package domain

import (
	"math"
	"sort"
	"time"
)

// PriceLevel is a single price+quantity entry in an order book.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBookSnapshot is a full snapshot of bids and asks for a symbol. Bids are
// sorted by price descending and asks ascending. Empty sides are valid and
// mean there is no liquidity on that side.
type OrderBookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// BestBid returns the top bid level, if any.
func (s OrderBookSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the top ask level, if any.
func (s OrderBookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}

// MidPrice returns the midpoint of the best bid and ask. When only one side
// is present its best price is returned; an empty book yields 0.
func (s OrderBookSnapshot) MidPrice() float64 {
	bid, hasBid := s.BestBid()
	ask, hasAsk := s.BestAsk()
	switch {
	case hasBid && hasAsk:
		return (bid.Price + ask.Price) / 2
	case hasBid:
		return bid.Price
	case hasAsk:
		return ask.Price
	default:
		return 0
	}
}

// Levels returns the side of the book an order on the given side consumes:
// asks for a buy, bids for a sell.
func (s OrderBookSnapshot) Levels(side OrderSide) []PriceLevel {
	if side == OrderSideSell {
		return s.Bids
	}
	return s.Asks
}

// Clone returns a deep copy so the caller owns its level slices.
func (s OrderBookSnapshot) Clone() OrderBookSnapshot {
	out := s
	out.Bids = append([]PriceLevel(nil), s.Bids...)
	out.Asks = append([]PriceLevel(nil), s.Asks...)
	return out
}

// Normalized returns a copy whose sides hold only levels with a finite,
// positive price and quantity, bids sorted descending and asks ascending.
// Every book entering the engine passes through it.
func (s OrderBookSnapshot) Normalized() OrderBookSnapshot {
	out := s
	out.Bids = NormalizeLevels(s.Bids, true)
	out.Asks = NormalizeLevels(s.Asks, false)
	return out
}

// NormalizeLevels copies the usable levels of one side and sorts them best
// first. The input slice is not modified.
func NormalizeLevels(levels []PriceLevel, descending bool) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		if !usable(lvl.Price) || !usable(lvl.Quantity) {
			continue
		}
		out = append(out, lvl)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// FirstLiquid returns the index of the first level with positive price and
// quantity, or -1 when the side has none.
func FirstLiquid(levels []PriceLevel) int {
	for i, lvl := range levels {
		if usable(lvl.Price) && usable(lvl.Quantity) {
			return i
		}
	}
	return -1
}

// TopDepth sums the quantity of the first n levels.
func TopDepth(levels []PriceLevel, n int) float64 {
	var total float64
	for i, lvl := range levels {
		if i >= n {
			break
		}
		total += lvl.Quantity
	}
	return total
}

// MarketData is a single market-data update for a symbol. Any of the
// optional parts may be nil.
type MarketData struct {
	Price     float64            `json:"price"`
	Volume    float64            `json:"volume"`
	OrderBook *OrderBookSnapshot `json:"order_book,omitempty"`
	Trade     *TradeSample       `json:"trade,omitempty"`
}
