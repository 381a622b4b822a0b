// Package liquidity implements the liquidity risk engine: live order book
// state per symbol, slippage and market-impact estimation, composite
// liquidity scoring and large-order split planning.
package liquidity

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// ScoreWeights are the composite weights of the four liquidity sub-scores.
// They must sum to 1.
type ScoreWeights struct {
	Spread    float64
	Imbalance float64
	Depth     float64
	Impact    float64
}

// Config holds every tunable of the engine. Use DefaultConfig and override
// individual fields; NewEngine validates the result.
type Config struct {
	// HistoryLength is how many snapshots are retained per symbol. Default 100.
	HistoryLength int
	// DepthLevels is how many top levels feed imbalance, depth and iceberg
	// checks. Default 10.
	DepthLevels int
	// CacheTTL is how long a computed LiquidityScore is served. Default 5s.
	CacheTTL time.Duration
	// TradeWindow is the rolling window used for ADV. Default 24h.
	TradeWindow time.Duration

	// SafetyMargin multiplies every raw slippage estimate. Default 1.2.
	SafetyMargin float64
	// SlippageWarning is the warning threshold as a ratio. Default 0.002.
	SlippageWarning float64
	// SlippageCritical is the critical threshold as a ratio. Default 0.005.
	SlippageCritical float64

	// ImpactAlpha and ImpactBeta parameterise the square-root temporary
	// impact term alpha * (amount/ADV)^beta. Defaults 0.1 and 0.5.
	ImpactAlpha float64
	ImpactBeta  float64
	// ImpactSplitThreshold is the total cost ratio above which split
	// execution is recommended. Default 0.01.
	ImpactSplitThreshold float64
	// TestNotional is the quote-currency size of the test order used by
	// the impact sub-score. Default 10,000.
	TestNotional float64

	// LargeOrderThreshold is the amount/best-level-depth ratio above which an
	// order is split. Default 0.5.
	LargeOrderThreshold float64
	// MaxExecutionRatio caps each slice at this fraction of best-level depth.
	// Default 0.3.
	MaxExecutionRatio float64
	MinSplitCount     int           // default 2
	MaxSplitCount     int           // default 20
	SplitInterval     time.Duration // default 500ms
	// TWAPParticipation is the amount/ADV ratio above which TWAP is chosen.
	// Default 0.10.
	TWAPParticipation float64
	// IcebergDepthRatio is the amount/top-depth ratio above which an
	// iceberg is chosen. Default 0.5.
	IcebergDepthRatio float64
	// VWAPSplitCount is the split count above which VWAP is chosen. Default 5.
	VWAPSplitCount int

	Weights ScoreWeights
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		HistoryLength:        100,
		DepthLevels:          10,
		CacheTTL:             5 * time.Second,
		TradeWindow:          24 * time.Hour,
		SafetyMargin:         1.2,
		SlippageWarning:      0.002,
		SlippageCritical:     0.005,
		ImpactAlpha:          0.1,
		ImpactBeta:           0.5,
		ImpactSplitThreshold: 0.01,
		TestNotional:         10_000,
		LargeOrderThreshold:  0.5,
		MaxExecutionRatio:    0.3,
		MinSplitCount:        2,
		MaxSplitCount:        20,
		SplitInterval:        500 * time.Millisecond,
		TWAPParticipation:    0.10,
		IcebergDepthRatio:    0.5,
		VWAPSplitCount:       5,
		Weights: ScoreWeights{
			Spread:    0.25,
			Imbalance: 0.20,
			Depth:     0.25,
			Impact:    0.30,
		},
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []string

	positive := func(name string, v float64) {
		if !(v > 0) {
			errs = append(errs, fmt.Sprintf("%s must be > 0, got %v", name, v))
		}
	}
	nonNegative := func(name string, v float64) {
		if v < 0 || math.IsNaN(v) {
			errs = append(errs, fmt.Sprintf("%s must be >= 0, got %v", name, v))
		}
	}

	if c.HistoryLength < 1 {
		errs = append(errs, "history_length must be >= 1")
	}
	if c.DepthLevels < 1 {
		errs = append(errs, "depth_levels must be >= 1")
	}
	positive("cache_ttl", float64(c.CacheTTL))
	positive("trade_window", float64(c.TradeWindow))
	positive("slippage_safety_margin", c.SafetyMargin)
	positive("slippage_warning", c.SlippageWarning)
	positive("slippage_critical", c.SlippageCritical)
	if c.SlippageWarning > c.SlippageCritical {
		errs = append(errs, "slippage_warning must not exceed slippage_critical")
	}
	nonNegative("impact_alpha", c.ImpactAlpha)
	positive("impact_beta", c.ImpactBeta)
	positive("impact_split_threshold", c.ImpactSplitThreshold)
	positive("impact_test_notional", c.TestNotional)
	positive("large_order_threshold", c.LargeOrderThreshold)
	positive("max_execution_ratio", c.MaxExecutionRatio)
	if c.MinSplitCount < 1 {
		errs = append(errs, "min_split_count must be >= 1")
	}
	if c.MaxSplitCount < c.MinSplitCount {
		errs = append(errs, "max_split_count must be >= min_split_count")
	}
	nonNegative("split_interval", float64(c.SplitInterval))
	positive("twap_participation", c.TWAPParticipation)
	positive("iceberg_depth_ratio", c.IcebergDepthRatio)
	if c.VWAPSplitCount < 1 {
		errs = append(errs, "vwap_split_count must be >= 1")
	}

	w := c.Weights
	nonNegative("weight_spread", w.Spread)
	nonNegative("weight_imbalance", w.Imbalance)
	nonNegative("weight_depth", w.Depth)
	nonNegative("weight_impact", w.Impact)
	if sum := w.Spread + w.Imbalance + w.Depth + w.Impact; math.Abs(sum-1) > 1e-6 {
		errs = append(errs, fmt.Sprintf("score weights must sum to 1, got %.4f", sum))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: liquidity: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
