package domain

import "fmt"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Valid reports whether the side is one of the known values.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// OrderRequest is a candidate order submitted for admission.
type OrderRequest struct {
	AccountID  string    `json:"account_id"`
	StrategyID string    `json:"strategy_id,omitempty"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Amount     float64   `json:"amount"`
	Price      float64   `json:"price"`
}

// Notional returns amount * price.
func (o OrderRequest) Notional() float64 {
	return o.Amount * o.Price
}

// Validate checks the request for missing or nonsensical fields.
func (o OrderRequest) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if !o.Side.Valid() {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	}
	if o.Amount <= 0 {
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidOrder)
	}
	if o.Price < 0 {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidOrder)
	}
	return nil
}
