package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/riskgate/internal/domain"
	"github.com/alanyoungcy/riskgate/internal/liquidity"
)

// Module names used in results, events and statistics.
const (
	ModuleTradingSwitch  = "trading_switch"
	ModuleValidation     = "validation"
	ModuleCircuitBreaker = "circuit_breaker"
	ModuleLiquidity      = "liquidity"
	ModuleMultiAccount   = "multi_account"
	ModulePortfolio      = "portfolio"
	ModuleAccount        = "account"
)

const mirrorTimeout = 2 * time.Second

// Collaborators are the external risk modules the pipeline consults. Any of
// them may be nil, in which case its step is skipped.
type Collaborators struct {
	Breaker        domain.CircuitBreaker
	MultiAccount   domain.MultiAccountRisk
	Portfolio      domain.PortfolioRisk
	AccountFactory domain.AccountRiskFactory
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the aggregator's time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithBookMirror mirrors every order book update to m in the background.
func WithBookMirror(m domain.BookMirror) Option {
	return func(a *Aggregator) { a.mirror = m }
}

type stats struct {
	totalChecks        atomic.Int64
	allowedOrders      atomic.Int64
	blockedOrders      atomic.Int64
	warningsIssued     atomic.Int64
	collaboratorErrors atomic.Int64
	lastCheckAt        atomic.Int64 // unix nanos

	mu             sync.Mutex
	blocksByModule map[string]int64
}

// Aggregator is the order admission pipeline.
type Aggregator struct {
	engine   *liquidity.Engine
	collab   Collaborators
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	mirror   domain.BookMirror
	events   *EventLog
	accounts *accountRegistry
	stats    stats

	pauseMu     sync.RWMutex
	paused      bool
	pauseReason string
	pausedAt    time.Time
}

// NewAggregator validates cfg and builds an Aggregator over engine.
// Liquidity warnings raised by the engine are recorded as risk events.
func NewAggregator(engine *liquidity.Engine, collab Collaborators, cfg Config, logger *slog.Logger, opts ...Option) (*Aggregator, error) {
	if engine == nil {
		return nil, errors.New("risk: liquidity engine is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if collab.AccountFactory == nil {
		collab.AccountFactory = NewLimitAccountRisk
	}

	a := &Aggregator{
		engine:   engine,
		collab:   collab,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "risk_aggregator")),
		now:      time.Now,
		accounts: newAccountRegistry(),
	}
	a.stats.blocksByModule = make(map[string]int64)
	for _, opt := range opts {
		opt(a)
	}
	a.events = NewEventLog(cfg.EventHistory, a.now, logger)

	engine.OnWarning(func(score domain.LiquidityScore) {
		a.events.Emit(context.Background(), ModuleLiquidity, domain.EventLiquidityWarning, map[string]any{
			"symbol": score.Symbol,
			"score":  score.Score,
			"level":  string(score.Level),
		})
	})
	return a, nil
}

// Events returns the event log so sinks can subscribe to it.
func (a *Aggregator) Events() *EventLog { return a.events }

// Engine returns the liquidity engine.
func (a *Aggregator) Engine() *liquidity.Engine { return a.engine }

// CheckOrder runs order through the admission pipeline: circuit breaker,
// liquidity, multi-account, portfolio and single-account, stopping at the
// first module that disallows it. Warnings from every module that ran are
// kept. CheckOrder never returns an error; failures of external modules are
// folded into the result according to Config.FailClosed.
func (a *Aggregator) CheckOrder(ctx context.Context, order domain.OrderRequest) domain.OrderCheckResult {
	res := domain.OrderCheckResult{
		CheckID:      uuid.NewString(),
		Order:        order,
		BlockReasons: []string{},
		Warnings:     []string{},
		CheckedAt:    a.now(),
	}
	a.stats.totalChecks.Add(1)
	a.stats.lastCheckAt.Store(res.CheckedAt.UnixNano())

	blockedBy := a.runPipeline(ctx, order, &res)
	res.Allowed = blockedBy == ""

	a.stats.warningsIssued.Add(int64(len(res.Warnings)))
	if res.Allowed {
		a.stats.allowedOrders.Add(1)
		return res
	}

	a.stats.blockedOrders.Add(1)
	a.stats.mu.Lock()
	a.stats.blocksByModule[blockedBy]++
	a.stats.mu.Unlock()

	a.logger.WarnContext(ctx, "order blocked",
		slog.String("check_id", res.CheckID),
		slog.String("module", blockedBy),
		slog.String("account_id", order.AccountID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.Float64("amount", order.Amount),
		slog.Any("reasons", res.BlockReasons),
	)
	a.events.Emit(ctx, blockedBy, domain.EventOrderBlocked, map[string]any{
		"check_id":   res.CheckID,
		"account_id": order.AccountID,
		"symbol":     order.Symbol,
		"side":       string(order.Side),
		"amount":     order.Amount,
		"price":      order.Price,
		"reasons":    res.BlockReasons,
	})
	return res
}

type step struct {
	module string
	run    func(context.Context, domain.OrderRequest, *domain.OrderCheckResult) domain.ModuleResult
}

// runPipeline fills res and returns the name of the blocking module, or ""
// when the order is allowed.
func (a *Aggregator) runPipeline(ctx context.Context, order domain.OrderRequest, res *domain.OrderCheckResult) string {
	if paused, reason := a.pauseState(); paused {
		mr := domain.ModuleResult{
			Module:  ModuleTradingSwitch,
			Reasons: []string{"trading paused: " + reason},
		}
		a.record(res, mr)
		return ModuleTradingSwitch
	}
	if err := order.Validate(); err != nil {
		mr := domain.ModuleResult{
			Module:  ModuleValidation,
			Reasons: []string{err.Error()},
		}
		a.record(res, mr)
		return ModuleValidation
	}

	steps := []step{
		{ModuleCircuitBreaker, a.checkBreaker},
		{ModuleLiquidity, a.checkLiquidity},
		{ModuleMultiAccount, a.checkMultiAccount},
		{ModulePortfolio, a.checkPortfolio},
		{ModuleAccount, a.checkAccount},
	}
	for _, s := range steps {
		start := time.Now()
		mr := s.run(ctx, order, res)
		mr.Module = s.module
		mr.Duration = time.Since(start)
		a.record(res, mr)
		if !mr.Allowed {
			return s.module
		}
	}
	return ""
}

func (a *Aggregator) record(res *domain.OrderCheckResult, mr domain.ModuleResult) {
	if !mr.Allowed && len(mr.Reasons) == 0 {
		mr.Reasons = []string{mr.Module + " rejected the order"}
	}
	res.Modules = append(res.Modules, mr)
	res.Warnings = append(res.Warnings, mr.Warnings...)
	if !mr.Allowed {
		res.BlockReasons = append(res.BlockReasons, mr.Reasons...)
	}
}

func skipped(reason string) domain.ModuleResult {
	mr := domain.ModuleResult{Allowed: true, Skipped: true}
	if reason != "" {
		mr.Warnings = []string{reason}
	}
	return mr
}

func fromCheck(cr domain.CheckResult) domain.ModuleResult {
	return domain.ModuleResult{
		Allowed:  cr.Allowed,
		Reasons:  cr.Reasons,
		Warnings: cr.Warnings,
	}
}

// collaboratorFailed folds an error from an external module into mr.
func (a *Aggregator) collaboratorFailed(ctx context.Context, module string, order domain.OrderRequest, err error) domain.ModuleResult {
	a.stats.collaboratorErrors.Add(1)
	a.logger.ErrorContext(ctx, "risk module failed",
		slog.String("module", module),
		slog.String("account_id", order.AccountID),
		slog.String("symbol", order.Symbol),
		slog.Bool("fail_closed", a.cfg.FailClosed),
		slog.String("error", err.Error()),
	)
	a.events.Emit(ctx, module, domain.EventCollaboratorFailed, map[string]any{
		"symbol":      order.Symbol,
		"account_id":  order.AccountID,
		"error":       err.Error(),
		"fail_closed": a.cfg.FailClosed,
	})

	mr := domain.ModuleResult{Error: err.Error()}
	if a.cfg.FailClosed {
		mr.Reasons = []string{fmt.Sprintf("%s unavailable: %v", module, err)}
		mr.Warnings = []string{fmt.Sprintf("%s check failed; order blocked", module)}
		return mr
	}
	mr.Allowed = true
	mr.Warnings = []string{fmt.Sprintf("%s check failed and was skipped: %v", module, err)}
	return mr
}

func (a *Aggregator) checkBreaker(ctx context.Context, order domain.OrderRequest, _ *domain.OrderCheckResult) domain.ModuleResult {
	if a.collab.Breaker == nil {
		return skipped("")
	}
	status, err := callWithTimeout(ctx, a.cfg.CollaboratorTimeout, ModuleCircuitBreaker, a.collab.Breaker.Status)
	if err != nil {
		return a.collaboratorFailed(ctx, ModuleCircuitBreaker, order, err)
	}
	if status.Level == domain.BreakerNormal {
		return domain.ModuleResult{Allowed: true}
	}
	reason := fmt.Sprintf("circuit breaker %s", status.Level)
	if status.Reason != "" {
		reason += ": " + status.Reason
	}
	return domain.ModuleResult{Reasons: []string{reason}}
}

// checkLiquidity blocks on critical slippage. Everything else the engine
// reports becomes a warning, and the split plan and impact estimate are
// attached to the result.
func (a *Aggregator) checkLiquidity(_ context.Context, order domain.OrderRequest, res *domain.OrderCheckResult) domain.ModuleResult {
	as := a.engine.Assess(order.Symbol, order.Side, order.Amount)
	mr := domain.ModuleResult{Allowed: true}

	if !as.Slippage.Success {
		mr.Warnings = append(mr.Warnings, "liquidity data unavailable: "+as.Slippage.Error)
		return mr
	}
	slip := as.Slippage
	switch slip.Level {
	case domain.SlippageCritical:
		mr.Allowed = false
		mr.Reasons = append(mr.Reasons, fmt.Sprintf("estimated slippage %.3f%% is critical", slip.EstimatedSlippage*100))
		return mr
	case domain.SlippageWarning:
		mr.Warnings = append(mr.Warnings, fmt.Sprintf("estimated slippage %.3f%% above warning threshold", slip.EstimatedSlippage*100))
	}
	if !slip.FullyFillable {
		mr.Warnings = append(mr.Warnings, fmt.Sprintf("visible depth fills only %g of %g", slip.FilledAmount, slip.Amount))
	}
	if as.Score.Success && as.Score.Level.Degraded() {
		mr.Warnings = append(mr.Warnings, fmt.Sprintf("liquidity is %s (score %d)", as.Score.Level, as.Score.Score))
	}
	if as.Impact.Success {
		impact := as.Impact
		res.MarketImpact = &impact
		if impact.TotalCostRatio > a.engine.Config().ImpactSplitThreshold {
			mr.Warnings = append(mr.Warnings, fmt.Sprintf("market impact %.3f%% of order value; %s recommended", impact.TotalCostRatio*100, impact.Recommendation))
		}
	}
	if as.Split.Success {
		plan := as.Split
		res.SplitPlan = &plan
		if plan.NeedsSplit {
			mr.Warnings = append(mr.Warnings, fmt.Sprintf("large order: split into %d slices using %s", plan.SplitCount, plan.RecommendedStrategy))
		}
	}
	return mr
}

func (a *Aggregator) checkMultiAccount(ctx context.Context, order domain.OrderRequest, _ *domain.OrderCheckResult) domain.ModuleResult {
	if a.collab.MultiAccount == nil {
		return skipped("")
	}
	cr, err := callWithTimeout(ctx, a.cfg.CollaboratorTimeout, ModuleMultiAccount, func(ctx context.Context) (domain.CheckResult, error) {
		return a.collab.MultiAccount.CheckOrder(ctx, order.AccountID, order)
	})
	if err != nil {
		return a.collaboratorFailed(ctx, ModuleMultiAccount, order, err)
	}
	return fromCheck(cr)
}

func (a *Aggregator) checkPortfolio(ctx context.Context, order domain.OrderRequest, _ *domain.OrderCheckResult) domain.ModuleResult {
	if a.collab.Portfolio == nil {
		return skipped("")
	}
	po := domain.PortfolioOrder{
		StrategyID: order.StrategyID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Amount:     order.Amount,
		Price:      order.Price,
	}
	cr, err := callWithTimeout(ctx, a.cfg.CollaboratorTimeout, ModulePortfolio, func(ctx context.Context) (domain.CheckResult, error) {
		return a.collab.Portfolio.CheckOrder(ctx, po)
	})
	if err != nil {
		return a.collaboratorFailed(ctx, ModulePortfolio, order, err)
	}
	return fromCheck(cr)
}

func (a *Aggregator) checkAccount(ctx context.Context, order domain.OrderRequest, _ *domain.OrderCheckResult) domain.ModuleResult {
	acct, ok := a.accounts.get(order.AccountID)
	if !ok {
		return skipped(fmt.Sprintf("account %q is not registered; single-account check skipped", order.AccountID))
	}
	req := domain.PositionRequest{
		Symbol: order.Symbol,
		Side:   order.Side,
		Amount: order.Amount,
		Price:  order.Price,
	}
	cr, err := callWithTimeout(ctx, a.cfg.CollaboratorTimeout, ModuleAccount, func(ctx context.Context) (domain.CheckResult, error) {
		return acct.module.CheckOpenPosition(ctx, req)
	})
	if err != nil {
		return a.collaboratorFailed(ctx, ModuleAccount, order, err)
	}
	return fromCheck(cr)
}

// UpdateMarketData feeds the liquidity engine and, when configured, mirrors
// the new book without blocking the caller.
func (a *Aggregator) UpdateMarketData(symbol string, data domain.MarketData) {
	a.engine.UpdateMarketData(symbol, data)
	if a.mirror == nil || data.OrderBook == nil {
		return
	}
	snap, ok := a.engine.OrderBook(symbol)
	if !ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := a.mirror.Mirror(ctx, snap); err != nil {
			a.logger.Warn("mirror order book",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// RegisterAccount adds an account and builds its single-account module. A
// zero cfg takes Config.DefaultAccount. The registration is forwarded to the
// multi-account module when it tracks accounts itself.
func (a *Aggregator) RegisterAccount(ctx context.Context, accountID string, cfg domain.AccountConfig) error {
	if accountID == "" {
		return fmt.Errorf("risk: register account: %w: empty account id", domain.ErrInvalidOrder)
	}
	if cfg.MaxPositions == 0 && cfg.MaxOrderNotional == 0 && cfg.MaxPositionPct == 0 {
		labels := cfg.Labels
		cfg = a.cfg.DefaultAccount
		cfg.Labels = labels
	}
	module, err := a.collab.AccountFactory(accountID, cfg)
	if err != nil {
		return fmt.Errorf("risk: register account %s: %w", accountID, err)
	}
	if !a.accounts.add(accountID, &account{cfg: cfg, module: module}) {
		return fmt.Errorf("risk: register account %s: %w", accountID, domain.ErrAccountExists)
	}

	if reg, ok := a.collab.MultiAccount.(domain.AccountRegistrar); ok {
		_, err := callWithTimeout(ctx, a.cfg.CollaboratorTimeout, ModuleMultiAccount, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, reg.RegisterAccount(ctx, accountID, cfg)
		})
		if err != nil {
			a.accounts.remove(accountID)
			return fmt.Errorf("risk: register account %s with multi-account module: %w", accountID, err)
		}
	}

	a.logger.InfoContext(ctx, "account registered", slog.String("account_id", accountID))
	a.events.Emit(ctx, ModuleAccount, domain.EventAccountRegistered, map[string]any{
		"account_id":         accountID,
		"max_positions":      cfg.MaxPositions,
		"max_order_notional": cfg.MaxOrderNotional,
		"max_position_pct":   cfg.MaxPositionPct,
	})
	return nil
}

// UpdateAccountData forwards equity and positions to the account's module
// and to the multi-account module.
func (a *Aggregator) UpdateAccountData(ctx context.Context, accountID string, data domain.AccountData) error {
	acct, ok := a.accounts.get(accountID)
	if !ok {
		return fmt.Errorf("risk: update account %s: %w", accountID, domain.ErrUnknownAccount)
	}
	if data.UpdatedAt.IsZero() {
		data.UpdatedAt = a.now()
	}
	if err := acct.module.UpdateAccount(ctx, data); err != nil {
		return fmt.Errorf("risk: update account %s: %w", accountID, err)
	}
	if reg, ok := a.collab.MultiAccount.(domain.AccountRegistrar); ok {
		_, err := callWithTimeout(ctx, a.cfg.CollaboratorTimeout, ModuleMultiAccount, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, reg.UpdateAccount(ctx, accountID, data)
		})
		if err != nil {
			return fmt.Errorf("risk: update account %s with multi-account module: %w", accountID, err)
		}
	}
	return nil
}

// Accounts lists registered account IDs.
func (a *Aggregator) Accounts() []string {
	return a.accounts.ids()
}

// EstimateSlippage delegates to the liquidity engine.
func (a *Aggregator) EstimateSlippage(symbol string, side domain.OrderSide, amount float64) domain.SlippageEstimate {
	return a.engine.EstimateSlippage(symbol, side, amount)
}

// SplitRecommendation delegates to the liquidity engine.
func (a *Aggregator) SplitRecommendation(symbol string, side domain.OrderSide, amount float64) domain.SplitPlan {
	return a.engine.SplitRecommendation(symbol, side, amount)
}

// CalculateMarketImpact delegates to the liquidity engine.
func (a *Aggregator) CalculateMarketImpact(symbol string, side domain.OrderSide, amount float64) domain.MarketImpactEstimate {
	return a.engine.CalculateMarketImpact(symbol, side, amount)
}

// LiquidityScore delegates to the liquidity engine.
func (a *Aggregator) LiquidityScore(symbol string) domain.LiquidityScore {
	return a.engine.LiquidityScore(symbol)
}

// PauseAllTrading blocks every order until ResumeAllTrading is called.
func (a *Aggregator) PauseAllTrading(ctx context.Context, reason string) {
	if reason == "" {
		reason = "manual pause"
	}
	a.pauseMu.Lock()
	a.paused = true
	a.pauseReason = reason
	a.pausedAt = a.now()
	a.pauseMu.Unlock()

	a.logger.WarnContext(ctx, "trading paused", slog.String("reason", reason))
	a.events.Emit(ctx, ModuleTradingSwitch, domain.EventTradingPaused, map[string]any{"reason": reason})
}

// ResumeAllTrading lifts a pause. It is a no-op when trading is enabled.
func (a *Aggregator) ResumeAllTrading(ctx context.Context) {
	a.pauseMu.Lock()
	was := a.paused
	a.paused = false
	a.pauseReason = ""
	a.pausedAt = time.Time{}
	a.pauseMu.Unlock()

	if !was {
		return
	}
	a.logger.InfoContext(ctx, "trading resumed")
	a.events.Emit(ctx, ModuleTradingSwitch, domain.EventTradingResumed, nil)
}

// TradingEnabled reports whether orders can currently be admitted.
func (a *Aggregator) TradingEnabled() bool {
	paused, _ := a.pauseState()
	return !paused
}

func (a *Aggregator) pauseState() (bool, string) {
	a.pauseMu.RLock()
	defer a.pauseMu.RUnlock()
	return a.paused, a.pauseReason
}

// Statistics returns a copy of the running counters.
func (a *Aggregator) Statistics() domain.RiskStatistics {
	s := domain.RiskStatistics{
		TotalChecks:        a.stats.totalChecks.Load(),
		AllowedOrders:      a.stats.allowedOrders.Load(),
		BlockedOrders:      a.stats.blockedOrders.Load(),
		WarningsIssued:     a.stats.warningsIssued.Load(),
		CollaboratorErrors: a.stats.collaboratorErrors.Load(),
	}
	if ns := a.stats.lastCheckAt.Load(); ns != 0 {
		s.LastCheckAt = time.Unix(0, ns).UTC()
	}
	a.stats.mu.Lock()
	s.BlocksByModule = make(map[string]int64, len(a.stats.blocksByModule))
	for k, v := range a.stats.blocksByModule {
		s.BlocksByModule[k] = v
	}
	a.stats.mu.Unlock()
	return s
}

// RiskReport summarises statistics, module state and recent events. The
// circuit breaker is queried for its current level.
func (a *Aggregator) RiskReport(ctx context.Context) domain.RiskReport {
	a.pauseMu.RLock()
	report := domain.RiskReport{
		TradingEnabled: !a.paused,
		PauseReason:    a.pauseReason,
	}
	if a.paused {
		at := a.pausedAt
		report.PausedAt = &at
	}
	a.pauseMu.RUnlock()

	accounts := a.accounts.ids()
	report.Statistics = a.Statistics()
	report.Accounts = len(accounts)
	report.Symbols = len(a.engine.Symbols())
	report.RecentEvents = a.events.Recent(a.cfg.ReportEvents)
	report.GeneratedAt = a.now()
	report.Modules = []domain.ModuleStatus{
		a.breakerStatus(ctx),
		{Name: ModuleLiquidity, Configured: true, Status: fmt.Sprintf("%d symbols tracked", report.Symbols)},
		configured(ModuleMultiAccount, a.collab.MultiAccount != nil),
		configured(ModulePortfolio, a.collab.Portfolio != nil),
		{Name: ModuleAccount, Configured: true, Status: fmt.Sprintf("%d accounts registered", len(accounts))},
	}
	return report
}

func configured(name string, ok bool) domain.ModuleStatus {
	if ok {
		return domain.ModuleStatus{Name: name, Configured: true, Status: "active"}
	}
	return domain.ModuleStatus{Name: name, Status: "not configured"}
}

func (a *Aggregator) breakerStatus(ctx context.Context) domain.ModuleStatus {
	if a.collab.Breaker == nil {
		return configured(ModuleCircuitBreaker, false)
	}
	ms := domain.ModuleStatus{Name: ModuleCircuitBreaker, Configured: true}
	status, err := callWithTimeout(ctx, a.cfg.CollaboratorTimeout, ModuleCircuitBreaker, a.collab.Breaker.Status)
	if err != nil {
		ms.Status = "error: " + err.Error()
		return ms
	}
	ms.Status = string(status.Level)
	return ms
}
