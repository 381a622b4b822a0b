package domain

import (
	"context"
	"time"
)

// BreakerLevel is the state reported by the circuit-breaker module.
type BreakerLevel string

const (
	BreakerNormal     BreakerLevel = "normal"
	BreakerWarning    BreakerLevel = "warning"
	BreakerRestricted BreakerLevel = "restricted"
	BreakerHalted     BreakerLevel = "halted"
)

// BreakerStatus is the circuit-breaker verdict. Anything but normal blocks.
type BreakerStatus struct {
	Level  BreakerLevel `json:"level"`
	Reason string       `json:"reason,omitempty"`
}

// CheckResult is the verdict returned by an external risk module.
type CheckResult struct {
	Allowed  bool     `json:"allowed"`
	Reasons  []string `json:"reasons,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// PortfolioOrder is the shape the portfolio module checks.
type PortfolioOrder struct {
	StrategyID string    `json:"strategy_id"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Amount     float64   `json:"amount"`
	Price      float64   `json:"price"`
}

// PositionRequest is the shape the single-account module checks.
type PositionRequest struct {
	Symbol string    `json:"symbol"`
	Side   OrderSide `json:"side"`
	Amount float64   `json:"amount"`
	Price  float64   `json:"price"`
}

// CircuitBreaker reports the market-wide protection state.
type CircuitBreaker interface {
	Status(ctx context.Context) (BreakerStatus, error)
}

// MultiAccountRisk enforces exposure limits across accounts.
type MultiAccountRisk interface {
	CheckOrder(ctx context.Context, accountID string, order OrderRequest) (CheckResult, error)
}

// AccountRegistrar is implemented by multi-account modules that track the
// set of accounts themselves.
type AccountRegistrar interface {
	RegisterAccount(ctx context.Context, accountID string, cfg AccountConfig) error
	UpdateAccount(ctx context.Context, accountID string, data AccountData) error
}

// PortfolioRisk enforces portfolio-level limits.
type PortfolioRisk interface {
	CheckOrder(ctx context.Context, order PortfolioOrder) (CheckResult, error)
}

// AccountRisk enforces limits for one account.
type AccountRisk interface {
	CheckOpenPosition(ctx context.Context, req PositionRequest) (CheckResult, error)
	UpdateAccount(ctx context.Context, data AccountData) error
}

// AccountRiskFactory builds the single-account module for a registered account.
type AccountRiskFactory func(accountID string, cfg AccountConfig) (AccountRisk, error)

// ModuleResult records what one pipeline step decided.
type ModuleResult struct {
	Module   string        `json:"module"`
	Allowed  bool          `json:"allowed"`
	Skipped  bool          `json:"skipped,omitempty"`
	Reasons  []string      `json:"reasons,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OrderCheckResult is the admission decision for one order. It is built
// fresh for every check and never mutated after it is returned.
type OrderCheckResult struct {
	CheckID      string                `json:"check_id"`
	Order        OrderRequest          `json:"order"`
	Allowed      bool                  `json:"allowed"`
	BlockReasons []string              `json:"block_reasons"`
	Warnings     []string              `json:"warnings"`
	Modules      []ModuleResult        `json:"modules"`
	SplitPlan    *SplitPlan            `json:"split_plan,omitempty"`
	MarketImpact *MarketImpactEstimate `json:"market_impact,omitempty"`
	CheckedAt    time.Time             `json:"checked_at"`
}

// RiskEvent types.
const (
	EventOrderBlocked       = "order_blocked"
	EventLiquidityWarning   = "liquidity_warning"
	EventTradingPaused      = "trading_paused"
	EventTradingResumed     = "trading_resumed"
	EventCollaboratorFailed = "collaborator_failed"
	EventAccountRegistered  = "account_registered"
)

// RiskEvent is an audit record emitted by the risk core.
type RiskEvent struct {
	ID        string         `json:"id"`
	Module    string         `json:"module"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// RiskStatistics are running counters kept by the aggregator.
type RiskStatistics struct {
	TotalChecks        int64            `json:"total_checks"`
	AllowedOrders      int64            `json:"allowed_orders"`
	BlockedOrders      int64            `json:"blocked_orders"`
	WarningsIssued     int64            `json:"warnings_issued"`
	CollaboratorErrors int64            `json:"collaborator_errors"`
	BlocksByModule     map[string]int64 `json:"blocks_by_module"`
	LastCheckAt        time.Time        `json:"last_check_at"`
}

// ModuleStatus describes one pipeline module in a risk report.
type ModuleStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Status     string `json:"status"`
}

// RiskReport is a point-in-time summary of the risk core.
type RiskReport struct {
	TradingEnabled bool           `json:"trading_enabled"`
	PauseReason    string         `json:"pause_reason,omitempty"`
	PausedAt       *time.Time     `json:"paused_at,omitempty"`
	Statistics     RiskStatistics `json:"statistics"`
	Modules        []ModuleStatus `json:"modules"`
	Accounts       int            `json:"accounts"`
	Symbols        int            `json:"symbols"`
	RecentEvents   []RiskEvent    `json:"recent_events"`
	GeneratedAt    time.Time      `json:"generated_at"`
}
