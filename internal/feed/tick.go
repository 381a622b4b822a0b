// Package feed turns upstream market ticks into risk-core market data
// updates.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// DefaultChannel is the SignalBus channel carrying market ticks.
const DefaultChannel = "market_data"

var errNoSymbol = errors.New("feed: tick has no symbol")

// Updater receives decoded market data. risk.Aggregator implements it.
type Updater interface {
	UpdateMarketData(symbol string, data domain.MarketData)
}

// Tick is the wire format of one market update. Book levels are
// [price, quantity] pairs; timestamps are unix milliseconds.
type Tick struct {
	Symbol    string       `json:"symbol"`
	Price     float64      `json:"price"`
	Volume    float64      `json:"volume"`
	Bids      [][2]float64 `json:"bids,omitempty"`
	Asks      [][2]float64 `json:"asks,omitempty"`
	Timestamp int64        `json:"timestamp,omitempty"`
	Trade     *TradeTick   `json:"trade,omitempty"`
}

// TradeTick is a public trade print inside a Tick.
type TradeTick struct {
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// DecodeTick parses raw JSON into a Tick.
func DecodeTick(raw []byte) (Tick, error) {
	var t Tick
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tick{}, fmt.Errorf("feed: decode tick: %w", err)
	}
	t.Symbol = strings.TrimSpace(t.Symbol)
	if t.Symbol == "" {
		return Tick{}, errNoSymbol
	}
	return t, nil
}

// MarketData converts the tick. A book is attached only when the tick
// carries at least one level; levels with non-positive price or quantity
// are dropped and both sides are re-sorted best first.
func (t Tick) MarketData(now time.Time) domain.MarketData {
	md := domain.MarketData{Price: t.Price, Volume: t.Volume}

	if len(t.Bids) > 0 || len(t.Asks) > 0 {
		snap := domain.OrderBookSnapshot{
			Symbol:    t.Symbol,
			Bids:      toLevels(t.Bids),
			Asks:      toLevels(t.Asks),
			Timestamp: stamp(t.Timestamp, now),
		}.Normalized()
		md.OrderBook = &snap
	}

	if t.Trade != nil && t.Trade.Volume > 0 {
		md.Trade = &domain.TradeSample{
			Price:     t.Trade.Price,
			Volume:    t.Trade.Volume,
			Timestamp: stamp(t.Trade.Timestamp, now),
		}
	}
	return md
}

func toLevels(pairs [][2]float64) []domain.PriceLevel {
	out := make([]domain.PriceLevel, len(pairs))
	for i, p := range pairs {
		out[i] = domain.PriceLevel{Price: p[0], Quantity: p[1]}
	}
	return out
}

func stamp(ms int64, now time.Time) time.Time {
	if ms <= 0 {
		return now
	}
	return time.UnixMilli(ms).UTC()
}
