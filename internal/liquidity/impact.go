package liquidity

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

const (
	recommendSplit      = "split execution"
	recommendAcceptable = "acceptable"
)

// ImpactModel decomposes execution cost into half-spread, square-root
// temporary impact and book-walk slippage.
type ImpactModel struct {
	books    *BookStore
	flow     *TradeFlow
	slippage *SlippageEstimator
	cfg      Config
}

// NewImpactModel creates an ImpactModel.
func NewImpactModel(books *BookStore, flow *TradeFlow, slippage *SlippageEstimator, cfg Config) *ImpactModel {
	return &ImpactModel{books: books, flow: flow, slippage: slippage, cfg: cfg}
}

// Estimate returns the expected cost of executing amount on side. Unknown ADV
// contributes zero temporary impact.
func (m *ImpactModel) Estimate(symbol string, side domain.OrderSide, amount float64) domain.MarketImpactEstimate {
	snap, ok := m.books.Get(symbol)
	if !ok {
		return domain.MarketImpactEstimate{
			Symbol: symbol,
			Side:   side,
			Amount: amount,
			Error:  fmt.Errorf("%w for %s", domain.ErrNoOrderBook, symbol).Error(),
		}
	}
	return m.FromBook(snap, side, amount)
}

// FromBook estimates the execution cost against an explicit snapshot.
func (m *ImpactModel) FromBook(snap domain.OrderBookSnapshot, side domain.OrderSide, amount float64) domain.MarketImpactEstimate {
	symbol := snap.Symbol
	out := domain.MarketImpactEstimate{Symbol: symbol, Side: side, Amount: amount}

	bid, hasBid := snap.BestBid()
	ask, hasAsk := snap.BestAsk()
	if !hasBid || !hasAsk {
		out.Error = fmt.Errorf("%w: %s needs both sides for spread", domain.ErrEmptyBook, symbol).Error()
		return out
	}

	slip, err := m.slippage.FromBook(snap, side, amount)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	mid := (bid.Price + ask.Price) / 2
	out.MidPrice = mid
	out.OrderValue = amount * mid
	if mid > 0 {
		out.ImmediateCost = (ask.Price - bid.Price) / mid / 2
	}

	if adv, ok := m.flow.ADV(symbol); ok && adv > 0 {
		out.ADV = adv
		out.ParticipationRate = amount / adv
		out.TemporaryImpact = m.cfg.ImpactAlpha * math.Pow(out.ParticipationRate, m.cfg.ImpactBeta)
	}

	out.SlippageCost = slip.EstimatedSlippage
	out.TotalCostRatio = out.ImmediateCost + out.TemporaryImpact + out.SlippageCost
	out.TotalCost = amount * mid * out.TotalCostRatio
	out.Recommendation = recommendAcceptable
	if out.TotalCostRatio > m.cfg.ImpactSplitThreshold {
		out.Recommendation = recommendSplit
	}
	out.Success = true
	return out
}
