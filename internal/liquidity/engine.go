package liquidity

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// WarningHandler receives liquidity scores that resolved to poor or critical.
type WarningHandler func(score domain.LiquidityScore)

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the liquidity risk engine. It owns the per-symbol market state
// and exposes slippage, impact, scoring and split planning over it.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	books    *BookStore
	flow     *TradeFlow
	slippage *SlippageEstimator
	impact   *ImpactModel
	scorer   *Scorer
	planner  *SplitPlanner

	handlersMu sync.RWMutex
	handlers   []WarningHandler
}

// NewEngine validates cfg and builds an Engine.
func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "liquidity_engine")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.books = NewBookStore(cfg.HistoryLength)
	e.flow = NewTradeFlow(cfg.TradeWindow, e.now)
	e.slippage = NewSlippageEstimator(e.books, cfg)
	e.impact = NewImpactModel(e.books, e.flow, e.slippage, cfg)
	e.scorer = NewScorer(e.books, e.slippage, cfg, e.now, e.degraded)
	e.planner = NewSplitPlanner(e.books, e.flow, e.slippage, e.scorer, cfg)
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// OnWarning registers h to be called, in registration order, whenever a
// score degrades to poor or critical.
func (e *Engine) OnWarning(h WarningHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.handlers = append(e.handlers, h)
}

func (e *Engine) degraded(score domain.LiquidityScore) {
	e.logger.Warn("liquidity degraded",
		slog.String("symbol", score.Symbol),
		slog.Int("score", score.Score),
		slog.String("level", string(score.Level)),
	)

	e.handlersMu.RLock()
	handlers := e.handlers
	e.handlersMu.RUnlock()
	for _, h := range handlers {
		h(score)
	}
}

// UpdateOrderBook replaces the book for symbol and recomputes its score.
func (e *Engine) UpdateOrderBook(symbol string, snap domain.OrderBookSnapshot) domain.LiquidityScore {
	snap = snap.Normalized()
	if snap.Timestamp.IsZero() {
		snap.Timestamp = e.now()
	}
	e.books.Update(symbol, snap)
	return e.scorer.Refresh(symbol)
}

// RecordTrade adds a trade print to the rolling volume window.
func (e *Engine) RecordTrade(symbol string, trade domain.TradeSample) {
	e.flow.Add(symbol, trade)
}

// UpdateMarketData fans a market-data update out to the book store and the
// trade flow tracker.
func (e *Engine) UpdateMarketData(symbol string, data domain.MarketData) {
	if data.Trade != nil {
		e.RecordTrade(symbol, *data.Trade)
	}
	if data.OrderBook != nil {
		e.UpdateOrderBook(symbol, *data.OrderBook)
	}
}

// OrderBook returns the current snapshot for symbol.
func (e *Engine) OrderBook(symbol string) (domain.OrderBookSnapshot, bool) {
	return e.books.Get(symbol)
}

// OrderBookHistory returns the retained snapshots for symbol, oldest first.
func (e *Engine) OrderBookHistory(symbol string) []domain.OrderBookSnapshot {
	return e.books.History(symbol)
}

// ADV returns the rolling traded volume for symbol.
func (e *Engine) ADV(symbol string) (float64, bool) {
	return e.flow.ADV(symbol)
}

// Symbols lists every symbol with a book.
func (e *Engine) Symbols() []string {
	return e.books.Symbols()
}

// EstimateSlippage walks the book for a hypothetical fill.
func (e *Engine) EstimateSlippage(symbol string, side domain.OrderSide, amount float64) domain.SlippageEstimate {
	return e.slippage.Estimate(symbol, side, amount)
}

// CalculateMarketImpact estimates the total execution cost.
func (e *Engine) CalculateMarketImpact(symbol string, side domain.OrderSide, amount float64) domain.MarketImpactEstimate {
	return e.impact.Estimate(symbol, side, amount)
}

// SplitRecommendation builds an execution plan.
func (e *Engine) SplitRecommendation(symbol string, side domain.OrderSide, amount float64) domain.SplitPlan {
	return e.planner.Plan(symbol, side, amount)
}

// LiquidityScore returns the cached or freshly computed score.
func (e *Engine) LiquidityScore(symbol string) domain.LiquidityScore {
	return e.scorer.Score(symbol)
}

// Assess computes every liquidity view of a candidate order from a single
// book snapshot, so a concurrent update cannot mix two books in one verdict.
func (e *Engine) Assess(symbol string, side domain.OrderSide, amount float64) domain.LiquidityAssessment {
	snap, ok := e.books.Get(symbol)
	if !ok {
		return domain.LiquidityAssessment{
			Slippage: e.EstimateSlippage(symbol, side, amount),
			Impact:   e.CalculateMarketImpact(symbol, side, amount),
			Split:    e.SplitRecommendation(symbol, side, amount),
			Score:    e.LiquidityScore(symbol),
		}
	}

	slip, err := e.slippage.FromBook(snap, side, amount)
	if err != nil {
		slip = failedSlippage(symbol, side, amount, err)
	}
	score := e.scorer.Compute(snap)
	return domain.LiquidityAssessment{
		Slippage: slip,
		Impact:   e.impact.FromBook(snap, side, amount),
		Split:    e.planner.FromBook(snap, side, amount, score),
		Score:    score,
	}
}
