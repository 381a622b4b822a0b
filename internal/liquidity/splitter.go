package liquidity

import (
	"fmt"
	"math"
	"time"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// SplitPlanner decides whether an order is large relative to top-of-book
// depth and, if so, how to slice it.
type SplitPlanner struct {
	books    *BookStore
	flow     *TradeFlow
	slippage *SlippageEstimator
	scorer   *Scorer
	cfg      Config
}

// NewSplitPlanner creates a SplitPlanner.
func NewSplitPlanner(books *BookStore, flow *TradeFlow, slippage *SlippageEstimator, scorer *Scorer, cfg Config) *SplitPlanner {
	return &SplitPlanner{books: books, flow: flow, slippage: slippage, scorer: scorer, cfg: cfg}
}

// Plan builds an execution plan for amount on side.
func (p *SplitPlanner) Plan(symbol string, side domain.OrderSide, amount float64) domain.SplitPlan {
	snap, ok := p.books.Get(symbol)
	if !ok {
		return domain.SplitPlan{
			Symbol:      symbol,
			Side:        side,
			TotalAmount: amount,
			Error:       fmt.Errorf("%w for %s", domain.ErrNoOrderBook, symbol).Error(),
		}
	}
	var score domain.LiquidityScore
	if p.scorer != nil {
		score = p.scorer.Score(symbol)
	}
	return p.FromBook(snap, side, amount, score)
}

// FromBook plans against an explicit snapshot and the liquidity score taken
// from it. Ratios are measured against the first level with positive depth.
func (p *SplitPlanner) FromBook(snap domain.OrderBookSnapshot, side domain.OrderSide, amount float64, score domain.LiquidityScore) domain.SplitPlan {
	plan := domain.SplitPlan{Symbol: snap.Symbol, Side: side, TotalAmount: amount}

	immediate, err := p.slippage.FromBook(snap, side, amount)
	if err != nil {
		plan.Error = err.Error()
		return plan
	}

	levels := snap.Levels(side)
	levels = levels[domain.FirstLiquid(levels):]
	plan.BestLevelDepth = levels[0].Quantity
	plan.ImmediateSlippage = immediate.EstimatedSlippage
	plan.OrderRatio = amount / plan.BestLevelDepth

	// Unknown ADV means zero participation rather than a failed plan.
	if adv, ok := p.flow.ADV(snap.Symbol); ok && adv > 0 {
		plan.ParticipationRate = amount / adv
	}

	plan.Success = true

	if plan.OrderRatio <= p.cfg.LargeOrderThreshold {
		plan.RecommendedStrategy = domain.StrategyImmediate
		plan.SplitCount = 1
		plan.Slices = []domain.SplitSlice{{Index: 0, Amount: amount, EstimatedSlippage: immediate.EstimatedSlippage}}
		plan.AverageSplitSlippage = immediate.EstimatedSlippage
		plan.Reason = fmt.Sprintf("order is %.1f%% of best level depth", plan.OrderRatio*100)
		return plan
	}

	plan.NeedsSplit = true
	plan.SplitCount = p.splitCount(amount, plan.BestLevelDepth)
	plan.Slices = p.slices(snap, side, amount, plan.SplitCount)

	var sum float64
	for _, s := range plan.Slices {
		sum += s.EstimatedSlippage
	}
	plan.AverageSplitSlippage = sum / float64(len(plan.Slices))
	plan.SlippageSaving = plan.ImmediateSlippage - plan.AverageSplitSlippage

	topDepth := domain.TopDepth(levels, p.cfg.DepthLevels)
	plan.RecommendedStrategy, plan.Reason = p.strategy(score, amount, topDepth, plan.ParticipationRate, plan.SplitCount)
	return plan
}

func (p *SplitPlanner) splitCount(amount, bestDepth float64) int {
	maxPerOrder := bestDepth * p.cfg.MaxExecutionRatio
	count := p.cfg.MaxSplitCount
	if maxPerOrder > 0 {
		raw := math.Ceil(amount / maxPerOrder)
		if raw < float64(p.cfg.MaxSplitCount) {
			count = int(raw)
		}
	}
	return max(p.cfg.MinSplitCount, min(p.cfg.MaxSplitCount, count))
}

// slices divides amount into count equal slices, the last one absorbing the
// floating-point remainder so the slices always sum to amount.
func (p *SplitPlanner) slices(snap domain.OrderBookSnapshot, side domain.OrderSide, amount float64, count int) []domain.SplitSlice {
	per := amount / float64(count)
	out := make([]domain.SplitSlice, count)
	allocated := 0.0
	for i := range count {
		sliceAmount := per
		if i == count-1 {
			sliceAmount = amount - allocated
		}
		allocated += sliceAmount

		var slip float64
		if est, err := p.slippage.FromBook(snap, side, sliceAmount); err == nil {
			slip = est.EstimatedSlippage
		}
		out[i] = domain.SplitSlice{
			Index:             i,
			Amount:            sliceAmount,
			Delay:             p.cfg.SplitInterval * time.Duration(i),
			EstimatedSlippage: slip,
		}
	}
	return out
}

func (p *SplitPlanner) strategy(score domain.LiquidityScore, amount, topDepth, participation float64, count int) (domain.ExecutionStrategy, string) {
	// Critical liquidity overrides the TWAP > iceberg > VWAP > adaptive order.
	if score.Success && score.Level == domain.LiquidityCritical {
		return domain.StrategyWait, fmt.Sprintf("liquidity is critical (score %d); wait for the book to recover", score.Score)
	}
	switch {
	case participation > p.cfg.TWAPParticipation:
		return domain.StrategyTWAP, fmt.Sprintf("participation rate %.1f%% of ADV", participation*100)
	case topDepth > 0 && amount/topDepth > p.cfg.IcebergDepthRatio:
		return domain.StrategyIceberg, fmt.Sprintf("order is %.1f%% of top-%d depth", amount/topDepth*100, p.cfg.DepthLevels)
	case count > p.cfg.VWAPSplitCount:
		return domain.StrategyVWAP, fmt.Sprintf("%d slices required", count)
	default:
		return domain.StrategyAdaptive, fmt.Sprintf("%d slices required", count)
	}
}
