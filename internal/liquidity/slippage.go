package liquidity

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// SlippageEstimator prices a hypothetical fill by walking the book.
type SlippageEstimator struct {
	books *BookStore
	cfg   Config
}

// NewSlippageEstimator creates a SlippageEstimator reading from books.
func NewSlippageEstimator(books *BookStore, cfg Config) *SlippageEstimator {
	return &SlippageEstimator{books: books, cfg: cfg}
}

// Estimate walks the current book for symbol. Missing or empty books are
// reported through Success=false rather than an error.
func (e *SlippageEstimator) Estimate(symbol string, side domain.OrderSide, amount float64) domain.SlippageEstimate {
	snap, ok := e.books.Get(symbol)
	if !ok {
		return failedSlippage(symbol, side, amount, fmt.Errorf("%w for %s", domain.ErrNoOrderBook, symbol))
	}
	est, err := e.FromBook(snap, side, amount)
	if err != nil {
		return failedSlippage(symbol, side, amount, err)
	}
	return est
}

// FromBook estimates slippage against an explicit snapshot.
func (e *SlippageEstimator) FromBook(snap domain.OrderBookSnapshot, side domain.OrderSide, amount float64) (domain.SlippageEstimate, error) {
	if !side.Valid() {
		return domain.SlippageEstimate{}, fmt.Errorf("%w: %q", domain.ErrInvalidSide, side)
	}
	if !(amount > 0) || math.IsInf(amount, 1) {
		return domain.SlippageEstimate{}, fmt.Errorf("%w: %v", domain.ErrInvalidAmount, amount)
	}

	levels := snap.Levels(side)
	first := domain.FirstLiquid(levels)
	if first < 0 {
		return domain.SlippageEstimate{}, fmt.Errorf("%w: %s %s", domain.ErrEmptyBook, snap.Symbol, side)
	}
	levels = levels[first:]

	bestPrice := levels[0].Price
	remaining := amount
	var totalCost, totalFilled float64
	fills := make([]domain.LevelFill, 0, 4)

	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		qty := math.Min(remaining, lvl.Quantity)
		if qty <= 0 {
			continue
		}
		cost := qty * lvl.Price
		totalCost += cost
		totalFilled += qty
		remaining -= qty
		fills = append(fills, domain.LevelFill{Price: lvl.Price, Quantity: qty, Cost: cost})
	}

	avgPrice := bestPrice
	if totalFilled > 0 {
		avgPrice = totalCost / totalFilled
	}

	var raw float64
	if bestPrice > 0 {
		if side == domain.OrderSideBuy {
			raw = (avgPrice - bestPrice) / bestPrice
		} else {
			raw = (bestPrice - avgPrice) / bestPrice
		}
	}
	slippage := math.Max(raw, 0) * e.cfg.SafetyMargin

	unfilled := math.Max(0, amount-totalFilled)

	return domain.SlippageEstimate{
		Success:           true,
		Symbol:            snap.Symbol,
		Side:              side,
		Amount:            amount,
		BestPrice:         bestPrice,
		AvgExecutionPrice: avgPrice,
		EstimatedSlippage: slippage,
		Level:             e.classify(slippage),
		FilledAmount:      totalFilled,
		UnfilledAmount:    unfilled,
		FullyFillable:     unfilled == 0,
		Fills:             fills,
	}, nil
}

func (e *SlippageEstimator) classify(slippage float64) domain.SlippageLevel {
	switch {
	case slippage >= e.cfg.SlippageCritical:
		return domain.SlippageCritical
	case slippage >= e.cfg.SlippageWarning:
		return domain.SlippageWarning
	default:
		return domain.SlippageNormal
	}
}

func failedSlippage(symbol string, side domain.OrderSide, amount float64, err error) domain.SlippageEstimate {
	return domain.SlippageEstimate{
		Success: false,
		Error:   err.Error(),
		Symbol:  symbol,
		Side:    side,
		Amount:  amount,
	}
}
