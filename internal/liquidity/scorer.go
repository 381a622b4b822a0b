package liquidity

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// breakpoint maps a threshold to the sub-score awarded at or inside it.
type breakpoint struct {
	limit float64
	score int
}

var (
	// Relative spread; lower is better.
	spreadBreakpoints = []breakpoint{
		{0.0001, 100}, {0.0005, 90}, {0.001, 80}, {0.002, 60}, {0.005, 40}, {0.01, 20},
	}
	// |bid-ask| / (bid+ask) depth over the top levels; lower is better.
	imbalanceBreakpoints = []breakpoint{
		{0.10, 100}, {0.20, 80}, {0.30, 60}, {0.40, 40}, {0.50, 20},
	}
	// Quote value of the top levels; higher is better.
	depthBreakpoints = []breakpoint{
		{10_000_000, 100}, {5_000_000, 90}, {1_000_000, 80}, {500_000, 60}, {100_000, 40}, {50_000, 20},
	}
	// Mean buy/sell slippage of the test order; lower is better.
	impactBreakpoints = []breakpoint{
		{0.0001, 100}, {0.0005, 90}, {0.001, 80}, {0.002, 60}, {0.005, 40}, {0.01, 20},
	}
)

func scoreAtMost(v float64, bps []breakpoint) int {
	for _, bp := range bps {
		if v <= bp.limit {
			return bp.score
		}
	}
	return 0
}

func scoreAtLeast(v float64, bps []breakpoint) int {
	for _, bp := range bps {
		if v >= bp.limit {
			return bp.score
		}
	}
	return 0
}

func levelFor(score int) domain.LiquidityLevel {
	switch {
	case score >= 80:
		return domain.LiquidityExcellent
	case score >= 60:
		return domain.LiquidityGood
	case score >= 40:
		return domain.LiquidityModerate
	case score >= 20:
		return domain.LiquidityPoor
	default:
		return domain.LiquidityCritical
	}
}

// Scorer computes and caches composite liquidity scores. Cached scores are
// published through a sync.Map so cache hits take no lock; recomputation is
// serialised per symbol so a stale book can never overwrite a newer score.
type Scorer struct {
	books     *BookStore
	slippage  *SlippageEstimator
	cfg       Config
	now       func() time.Time
	onDegrade func(domain.LiquidityScore)

	cache sync.Map // symbol -> *domain.LiquidityScore
	locks sync.Map // symbol -> *sync.Mutex
}

// NewScorer creates a Scorer. onDegrade, when non-nil, is called every time a
// freshly computed score is poor or critical.
func NewScorer(books *BookStore, slippage *SlippageEstimator, cfg Config, now func() time.Time, onDegrade func(domain.LiquidityScore)) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{
		books:     books,
		slippage:  slippage,
		cfg:       cfg,
		now:       now,
		onDegrade: onDegrade,
	}
}

func (s *Scorer) lock(symbol string) *sync.Mutex {
	if mu, ok := s.locks.Load(symbol); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := s.locks.LoadOrStore(symbol, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Scorer) cached(symbol string) (domain.LiquidityScore, bool) {
	v, ok := s.cache.Load(symbol)
	if !ok {
		return domain.LiquidityScore{}, false
	}
	score := v.(*domain.LiquidityScore)
	if s.now().Sub(score.Timestamp) >= s.cfg.CacheTTL {
		return domain.LiquidityScore{}, false
	}
	return *score, true
}

// Score returns the cached score for symbol if it is younger than the cache
// TTL, recomputing it otherwise.
func (s *Scorer) Score(symbol string) domain.LiquidityScore {
	if score, ok := s.cached(symbol); ok {
		return score
	}

	mu := s.lock(symbol)
	mu.Lock()
	defer mu.Unlock()
	if score, ok := s.cached(symbol); ok {
		return score
	}
	return s.refreshLocked(symbol)
}

// Refresh recomputes the score for symbol unconditionally.
func (s *Scorer) Refresh(symbol string) domain.LiquidityScore {
	mu := s.lock(symbol)
	mu.Lock()
	defer mu.Unlock()
	return s.refreshLocked(symbol)
}

func (s *Scorer) refreshLocked(symbol string) domain.LiquidityScore {
	snap, ok := s.books.Get(symbol)
	if !ok {
		return domain.LiquidityScore{
			Symbol:    symbol,
			Level:     domain.LiquidityCritical,
			Error:     fmt.Errorf("%w for %s", domain.ErrNoOrderBook, symbol).Error(),
			Timestamp: s.now(),
		}
	}

	score := s.Compute(snap)
	s.cache.Store(symbol, &score)

	if score.Level.Degraded() && s.onDegrade != nil {
		s.onDegrade(score)
	}
	return score
}

// Compute scores a snapshot without touching the cache.
func (s *Scorer) Compute(snap domain.OrderBookSnapshot) domain.LiquidityScore {
	var (
		metrics domain.LiquidityMetrics
		sub     domain.LiquiditySubScores
	)

	bid, hasBid := snap.BestBid()
	ask, hasAsk := snap.BestAsk()
	if hasBid && hasAsk && bid.Price > 0 {
		metrics.SpreadRatio = (ask.Price - bid.Price) / bid.Price
		sub.Spread = scoreAtMost(metrics.SpreadRatio, spreadBreakpoints)
	}

	metrics.BidDepth = domain.TopDepth(snap.Bids, s.cfg.DepthLevels)
	metrics.AskDepth = domain.TopDepth(snap.Asks, s.cfg.DepthLevels)
	if total := metrics.BidDepth + metrics.AskDepth; total > 0 {
		metrics.ImbalanceRatio = math.Abs(metrics.BidDepth-metrics.AskDepth) / total
		sub.Imbalance = scoreAtMost(metrics.ImbalanceRatio, imbalanceBreakpoints)
	}

	mid := snap.MidPrice()
	metrics.DepthValue = (metrics.BidDepth + metrics.AskDepth) * mid
	sub.Depth = scoreAtLeast(metrics.DepthValue, depthBreakpoints)

	if mid > 0 {
		size := s.cfg.TestNotional / mid
		buy, errBuy := s.slippage.FromBook(snap, domain.OrderSideBuy, size)
		sell, errSell := s.slippage.FromBook(snap, domain.OrderSideSell, size)
		if errBuy == nil && errSell == nil {
			metrics.AvgSlippage = (buy.EstimatedSlippage + sell.EstimatedSlippage) / 2
			sub.Impact = scoreAtMost(metrics.AvgSlippage, impactBreakpoints)
		}
	}

	w := s.cfg.Weights
	composite := w.Spread*float64(sub.Spread) +
		w.Imbalance*float64(sub.Imbalance) +
		w.Depth*float64(sub.Depth) +
		w.Impact*float64(sub.Impact)
	score := int(math.Round(composite))
	score = max(0, min(100, score))

	return domain.LiquidityScore{
		Success:   true,
		Symbol:    snap.Symbol,
		Score:     score,
		Level:     levelFor(score),
		SubScores: sub,
		Metrics:   metrics,
		Timestamp: s.now(),
	}
}
