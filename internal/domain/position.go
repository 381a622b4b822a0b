package domain

import (
	"math"
	"time"
)

// AccountPosition is an open position held by a trading account.
type AccountPosition struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"` // signed: negative for short
	AvgPrice float64 `json:"avg_price"`
}

// Notional returns the absolute notional value of the position.
func (p AccountPosition) Notional() float64 {
	return math.Abs(p.Quantity) * p.AvgPrice
}

// AccountConfig holds the limits applied to a single account.
type AccountConfig struct {
	MaxPositions     int               `json:"max_positions"`
	MaxOrderNotional float64           `json:"max_order_notional"`
	MaxPositionPct   float64           `json:"max_position_pct"`
	Labels           map[string]string `json:"labels,omitempty"`
}

// AccountData is the latest equity and position state for an account.
type AccountData struct {
	Equity    float64                    `json:"equity"`
	Positions map[string]AccountPosition `json:"positions"`
	UpdatedAt time.Time                  `json:"updated_at"`
}
