package domain

import "time"

// SlippageLevel classifies an estimated slippage against configured thresholds.
type SlippageLevel string

const (
	SlippageNormal   SlippageLevel = "normal"
	SlippageWarning  SlippageLevel = "warning"
	SlippageCritical SlippageLevel = "critical"
)

// LevelFill is the part of a hypothetical fill taken from one book level.
type LevelFill struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Cost     float64 `json:"cost"`
}

// SlippageEstimate is the result of walking the book for a hypothetical fill.
// When Success is false the remaining fields are zero and Error says why.
type SlippageEstimate struct {
	Success           bool          `json:"success"`
	Error             string        `json:"error,omitempty"`
	Symbol            string        `json:"symbol"`
	Side              OrderSide     `json:"side"`
	Amount            float64       `json:"amount"`
	BestPrice         float64       `json:"best_price"`
	AvgExecutionPrice float64       `json:"avg_execution_price"`
	EstimatedSlippage float64       `json:"estimated_slippage"`
	Level             SlippageLevel `json:"level"`
	FilledAmount      float64       `json:"filled_amount"`
	UnfilledAmount    float64       `json:"unfilled_amount"`
	FullyFillable     bool          `json:"fully_fillable"`
	Fills             []LevelFill   `json:"fills"`
}

// ExecutionStrategy is the recommended way to work an order.
type ExecutionStrategy string

const (
	StrategyImmediate ExecutionStrategy = "immediate"
	StrategyTWAP      ExecutionStrategy = "twap"
	StrategyVWAP      ExecutionStrategy = "vwap"
	StrategyIceberg   ExecutionStrategy = "iceberg"
	StrategyAdaptive  ExecutionStrategy = "adaptive"
	StrategyWait      ExecutionStrategy = "wait"
)

// SplitSlice is one child order of a split plan.
type SplitSlice struct {
	Index             int           `json:"index"`
	Amount            float64       `json:"amount"`
	Delay             time.Duration `json:"delay"`
	EstimatedSlippage float64       `json:"estimated_slippage"`
}

// SplitPlan is a recommendation for executing a possibly large order.
type SplitPlan struct {
	Success              bool              `json:"success"`
	Error                string            `json:"error,omitempty"`
	Symbol               string            `json:"symbol"`
	Side                 OrderSide         `json:"side"`
	TotalAmount          float64           `json:"total_amount"`
	NeedsSplit           bool              `json:"needs_split"`
	OrderRatio           float64           `json:"order_ratio"`
	BestLevelDepth       float64           `json:"best_level_depth"`
	ParticipationRate    float64           `json:"participation_rate"`
	RecommendedStrategy  ExecutionStrategy `json:"recommended_strategy"`
	SplitCount           int               `json:"split_count"`
	Slices               []SplitSlice      `json:"slices"`
	ImmediateSlippage    float64           `json:"immediate_slippage"`
	AverageSplitSlippage float64           `json:"average_split_slippage"`
	SlippageSaving       float64           `json:"slippage_saving"`
	Reason               string            `json:"reason"`
}

// MarketImpactEstimate decomposes the expected cost of executing an order.
// Cost components are ratios of order value; TotalCost is in quote currency.
type MarketImpactEstimate struct {
	Success           bool      `json:"success"`
	Error             string    `json:"error,omitempty"`
	Symbol            string    `json:"symbol"`
	Side              OrderSide `json:"side"`
	Amount            float64   `json:"amount"`
	MidPrice          float64   `json:"mid_price"`
	OrderValue        float64   `json:"order_value"`
	ADV               float64   `json:"adv"`
	ParticipationRate float64   `json:"participation_rate"`
	ImmediateCost     float64   `json:"immediate_cost"`
	TemporaryImpact   float64   `json:"temporary_impact"`
	SlippageCost      float64   `json:"slippage_cost"`
	TotalCostRatio    float64   `json:"total_cost_ratio"`
	TotalCost         float64   `json:"total_cost"`
	Recommendation    string    `json:"recommendation"`
}

// LiquidityLevel is the categorical bucket of a composite liquidity score.
type LiquidityLevel string

const (
	LiquidityExcellent LiquidityLevel = "excellent"
	LiquidityGood      LiquidityLevel = "good"
	LiquidityModerate  LiquidityLevel = "moderate"
	LiquidityPoor      LiquidityLevel = "poor"
	LiquidityCritical  LiquidityLevel = "critical"
)

// Degraded reports whether the level warrants a liquidity warning.
func (l LiquidityLevel) Degraded() bool {
	return l == LiquidityPoor || l == LiquidityCritical
}

// LiquiditySubScores is the per-factor breakdown of a liquidity score.
type LiquiditySubScores struct {
	Spread    int `json:"spread"`
	Imbalance int `json:"imbalance"`
	Depth     int `json:"depth"`
	Impact    int `json:"impact"`
}

// LiquidityMetrics are the raw book measurements behind a score.
type LiquidityMetrics struct {
	SpreadRatio    float64 `json:"spread_ratio"`
	ImbalanceRatio float64 `json:"imbalance_ratio"`
	BidDepth       float64 `json:"bid_depth"`
	AskDepth       float64 `json:"ask_depth"`
	DepthValue     float64 `json:"depth_value"`
	AvgSlippage    float64 `json:"avg_slippage"`
}

// LiquidityScore is the composite 0-100 liquidity assessment for a symbol.
type LiquidityScore struct {
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
	Symbol    string             `json:"symbol"`
	Score     int                `json:"score"`
	Level     LiquidityLevel     `json:"level"`
	SubScores LiquiditySubScores `json:"sub_scores"`
	Metrics   LiquidityMetrics   `json:"metrics"`
	Timestamp time.Time          `json:"timestamp"`
}

// LiquidityAssessment bundles every liquidity view of one candidate order.
type LiquidityAssessment struct {
	Slippage SlippageEstimate     `json:"slippage"`
	Impact   MarketImpactEstimate `json:"impact"`
	Split    SplitPlan            `json:"split"`
	Score    LiquidityScore       `json:"score"`
}
