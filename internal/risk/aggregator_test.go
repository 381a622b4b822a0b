package risk

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

func containsText(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func eventTypes(events []domain.RiskEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func accountFactory(acct *fakeAccount) domain.AccountRiskFactory {
	return func(string, domain.AccountConfig) (domain.AccountRisk, error) { return acct, nil }
}

func TestCheckOrder_AllModulesPass(t *testing.T) {
	breaker := &fakeBreaker{status: domain.BreakerStatus{Level: domain.BreakerNormal}}
	multi := &fakeMulti{result: allow("exposure at 80%")}
	portfolio := &fakePortfolio{result: allow()}
	acct := &fakeAccount{result: allow()}
	a := newTestAggregator(t, Collaborators{
		Breaker:        breaker,
		MultiAccount:   multi,
		Portfolio:      portfolio,
		AccountFactory: accountFactory(acct),
	})
	require.NoError(t, a.RegisterAccount(context.Background(), "acct-1", domain.AccountConfig{}))

	res := a.CheckOrder(context.Background(), buy("acct-1", 1))

	assert.True(t, res.Allowed)
	assert.NotEmpty(t, res.CheckID)
	assert.Empty(t, res.BlockReasons)
	assert.Equal(t, []string{"exposure at 80%"}, res.Warnings)
	require.Len(t, res.Modules, 5)
	for i, name := range []string{ModuleCircuitBreaker, ModuleLiquidity, ModuleMultiAccount, ModulePortfolio, ModuleAccount} {
		assert.Equal(t, name, res.Modules[i].Module)
		assert.True(t, res.Modules[i].Allowed)
	}
	require.NotNil(t, res.SplitPlan)
	assert.False(t, res.SplitPlan.NeedsSplit)
	require.NotNil(t, res.MarketImpact)
	assert.Equal(t, 1, acct.calls)

	stats := a.Statistics()
	assert.Equal(t, int64(1), stats.TotalChecks)
	assert.Equal(t, int64(1), stats.AllowedOrders)
	assert.Zero(t, stats.BlockedOrders)
	assert.Equal(t, int64(1), stats.WarningsIssued)
	assert.Equal(t, testNow, stats.LastCheckAt)
}

func TestCheckOrder_BreakerShortCircuits(t *testing.T) {
	breaker := &fakeBreaker{status: domain.BreakerStatus{Level: domain.BreakerHalted, Reason: "flash crash"}}
	multi := &fakeMulti{result: allow("should not appear")}
	portfolio := &fakePortfolio{result: allow()}
	a := newTestAggregator(t, Collaborators{Breaker: breaker, MultiAccount: multi, Portfolio: portfolio})

	res := a.CheckOrder(context.Background(), buy("acct-1", 1))

	assert.False(t, res.Allowed)
	assert.Equal(t, []string{"circuit breaker halted: flash crash"}, res.BlockReasons)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Modules, 1)
	assert.Nil(t, res.SplitPlan)
	assert.Nil(t, res.MarketImpact)
	assert.Zero(t, multi.calls)
	assert.Zero(t, portfolio.calls)

	stats := a.Statistics()
	assert.Equal(t, int64(1), stats.BlockedOrders)
	assert.Equal(t, int64(1), stats.BlocksByModule[ModuleCircuitBreaker])

	events := a.Events().Recent(0)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventOrderBlocked, last.Type)
	assert.Equal(t, ModuleCircuitBreaker, last.Module)
	assert.Equal(t, res.CheckID, last.Payload["check_id"])
}

func TestCheckOrder_NonNormalBreakerLevelsBlock(t *testing.T) {
	for _, lvl := range []domain.BreakerLevel{domain.BreakerWarning, domain.BreakerRestricted, domain.BreakerHalted} {
		a := newTestAggregator(t, Collaborators{Breaker: &fakeBreaker{status: domain.BreakerStatus{Level: lvl}}})
		res := a.CheckOrder(context.Background(), buy("a", 1))
		assert.False(t, res.Allowed, lvl)
		assert.Equal(t, []string{"circuit breaker " + string(lvl)}, res.BlockReasons)
	}
}

func TestCheckOrder_CriticalSlippageBlocks(t *testing.T) {
	multi := &fakeMulti{result: allow()}
	a := newTestAggregator(t, Collaborators{MultiAccount: multi})
	a.UpdateMarketData("THIN", domain.MarketData{OrderBook: ptr(thinBook())})

	order := buy("a", 2)
	order.Symbol = "THIN"
	order.Price = 100
	res := a.CheckOrder(context.Background(), order)

	assert.False(t, res.Allowed)
	assert.True(t, containsText(res.BlockReasons, "critical"))
	assert.Nil(t, res.SplitPlan)
	assert.Zero(t, multi.calls)
	assert.Equal(t, int64(1), a.Statistics().BlocksByModule[ModuleLiquidity])
}

func TestCheckOrder_LiquidityWarningsDoNotBlock(t *testing.T) {
	a := newTestAggregator(t, Collaborators{})
	a.UpdateMarketData("ALT", domain.MarketData{OrderBook: &domain.OrderBookSnapshot{
		Bids: []domain.PriceLevel{{Price: 99.9, Quantity: 20}},
		Asks: []domain.PriceLevel{{Price: 100, Quantity: 10}, {Price: 100.5, Quantity: 10}},
	}})

	order := buy("a", 20)
	order.Symbol = "ALT"
	order.Price = 100
	res := a.CheckOrder(context.Background(), order)

	assert.True(t, res.Allowed)
	assert.True(t, containsText(res.Warnings, "above warning threshold"), res.Warnings)
	assert.True(t, containsText(res.Warnings, "split into"), res.Warnings)
	require.NotNil(t, res.SplitPlan)
	assert.True(t, res.SplitPlan.NeedsSplit)
	require.NotNil(t, res.MarketImpact)
}

func TestCheckOrder_MissingBookWarns(t *testing.T) {
	a := newTestAggregator(t, Collaborators{})
	order := buy("a", 1)
	order.Symbol = "UNKNOWN"

	res := a.CheckOrder(context.Background(), order)
	assert.True(t, res.Allowed)
	assert.True(t, containsText(res.Warnings, "liquidity data unavailable"))
}

func TestCheckOrder_CollaboratorErrorFailClosed(t *testing.T) {
	multi := &fakeMulti{err: errors.New("connection refused")}
	portfolio := &fakePortfolio{result: allow()}
	a := newTestAggregator(t, Collaborators{MultiAccount: multi, Portfolio: portfolio})

	res := a.CheckOrder(context.Background(), buy("a", 1))

	assert.False(t, res.Allowed)
	assert.True(t, containsText(res.BlockReasons, "multi_account unavailable: connection refused"))
	assert.True(t, containsText(res.Warnings, "multi_account check failed"))
	assert.Zero(t, portfolio.calls)
	assert.Equal(t, int64(1), a.Statistics().CollaboratorErrors)
	assert.Contains(t, eventTypes(a.Events().Recent(0)), domain.EventCollaboratorFailed)
}

func TestCheckOrder_CollaboratorErrorFailOpen(t *testing.T) {
	multi := &fakeMulti{err: errors.New("connection refused")}
	portfolio := &fakePortfolio{result: allow()}
	a := newTestAggregator(t, Collaborators{MultiAccount: multi, Portfolio: portfolio},
		func(c *Config) { c.FailClosed = false })

	res := a.CheckOrder(context.Background(), buy("a", 1))

	assert.True(t, res.Allowed)
	assert.True(t, containsText(res.Warnings, "multi_account check failed and was skipped"))
	assert.Equal(t, 1, portfolio.calls)
	assert.Equal(t, int64(1), a.Statistics().CollaboratorErrors)
}

func TestCheckOrder_CollaboratorTimeout(t *testing.T) {
	breaker := &fakeBreaker{status: domain.BreakerStatus{Level: domain.BreakerNormal}, delay: time.Second}
	a := newTestAggregator(t, Collaborators{Breaker: breaker})

	start := time.Now()
	res := a.CheckOrder(context.Background(), buy("a", 1))

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, res.Allowed)
	require.Len(t, res.Modules, 1)
	assert.Contains(t, res.Modules[0].Error, domain.ErrCollaboratorTimeout.Error())
}

func TestCheckOrder_CollaboratorPanic(t *testing.T) {
	a := newTestAggregator(t, Collaborators{Breaker: &fakeBreaker{panics: true}})

	res := a.CheckOrder(context.Background(), buy("a", 1))

	assert.False(t, res.Allowed)
	assert.True(t, containsText(res.BlockReasons, "panicked"))
}

func TestCheckOrder_PortfolioDenies(t *testing.T) {
	portfolio := &fakePortfolio{result: deny("strategy drawdown limit")}
	acct := &fakeAccount{result: allow()}
	a := newTestAggregator(t, Collaborators{Portfolio: portfolio, AccountFactory: accountFactory(acct)})
	require.NoError(t, a.RegisterAccount(context.Background(), "a", domain.AccountConfig{}))

	order := buy("a", 1)
	order.StrategyID = "momentum"
	res := a.CheckOrder(context.Background(), order)

	assert.False(t, res.Allowed)
	assert.Equal(t, []string{"strategy drawdown limit"}, res.BlockReasons)
	assert.Equal(t, "momentum", portfolio.last.StrategyID)
	assert.Equal(t, 50001.0, portfolio.last.Price)
	assert.Zero(t, acct.calls)
}

func TestCheckOrder_DenyWithoutReason(t *testing.T) {
	a := newTestAggregator(t, Collaborators{MultiAccount: &fakeMulti{result: deny()}})

	res := a.CheckOrder(context.Background(), buy("a", 1))
	assert.False(t, res.Allowed)
	assert.Equal(t, []string{"multi_account rejected the order"}, res.BlockReasons)
}

func TestCheckOrder_UnregisteredAccountSkipsAccountCheck(t *testing.T) {
	a := newTestAggregator(t, Collaborators{})

	res := a.CheckOrder(context.Background(), buy("ghost", 1))

	assert.True(t, res.Allowed)
	assert.True(t, containsText(res.Warnings, `account "ghost" is not registered`))
	last := res.Modules[len(res.Modules)-1]
	assert.Equal(t, ModuleAccount, last.Module)
	assert.True(t, last.Skipped)
}

func TestCheckOrder_InvalidOrder(t *testing.T) {
	breaker := &fakeBreaker{status: domain.BreakerStatus{Level: domain.BreakerNormal}}
	a := newTestAggregator(t, Collaborators{Breaker: breaker})

	res := a.CheckOrder(context.Background(), buy("a", 0))
	assert.False(t, res.Allowed)
	assert.Equal(t, ModuleValidation, res.Modules[0].Module)
	assert.Zero(t, breaker.calls)
}

func TestPauseAndResumeTrading(t *testing.T) {
	breaker := &fakeBreaker{status: domain.BreakerStatus{Level: domain.BreakerNormal}}
	a := newTestAggregator(t, Collaborators{Breaker: breaker})
	ctx := context.Background()

	a.PauseAllTrading(ctx, "maintenance")
	assert.False(t, a.TradingEnabled())

	res := a.CheckOrder(ctx, buy("a", 1))
	assert.False(t, res.Allowed)
	assert.Equal(t, []string{"trading paused: maintenance"}, res.BlockReasons)
	assert.Zero(t, breaker.calls)

	report := a.RiskReport(ctx)
	assert.False(t, report.TradingEnabled)
	assert.Equal(t, "maintenance", report.PauseReason)
	require.NotNil(t, report.PausedAt)

	a.ResumeAllTrading(ctx)
	assert.True(t, a.TradingEnabled())
	assert.True(t, a.CheckOrder(ctx, buy("a", 1)).Allowed)

	types := eventTypes(a.Events().Recent(0))
	assert.Contains(t, types, domain.EventTradingPaused)
	assert.Contains(t, types, domain.EventTradingResumed)
}

func TestRiskReport(t *testing.T) {
	breaker := &fakeBreaker{status: domain.BreakerStatus{Level: domain.BreakerWarning}}
	a := newTestAggregator(t, Collaborators{Breaker: breaker}, func(c *Config) { c.ReportEvents = 3 })
	ctx := context.Background()
	require.NoError(t, a.RegisterAccount(ctx, "a", domain.AccountConfig{}))

	for range 5 {
		a.CheckOrder(ctx, buy("a", 1))
	}

	report := a.RiskReport(ctx)
	assert.True(t, report.TradingEnabled)
	assert.Equal(t, int64(5), report.Statistics.TotalChecks)
	assert.Equal(t, int64(5), report.Statistics.BlockedOrders)
	assert.Equal(t, 1, report.Accounts)
	assert.Equal(t, 1, report.Symbols)
	assert.Len(t, report.RecentEvents, 3)
	assert.Equal(t, testNow, report.GeneratedAt)

	statuses := map[string]domain.ModuleStatus{}
	for _, m := range report.Modules {
		statuses[m.Name] = m
	}
	assert.Equal(t, "warning", statuses[ModuleCircuitBreaker].Status)
	assert.False(t, statuses[ModulePortfolio].Configured)
	assert.Equal(t, "1 accounts registered", statuses[ModuleAccount].Status)
}

func TestRegisterAccount(t *testing.T) {
	multi := &registeringMulti{fakeMulti: fakeMulti{result: allow()}}
	a := newTestAggregator(t, Collaborators{MultiAccount: multi})
	ctx := context.Background()

	require.NoError(t, a.RegisterAccount(ctx, "a", domain.AccountConfig{}))
	assert.Equal(t, DefaultConfig().DefaultAccount, multi.registered["a"])

	err := a.RegisterAccount(ctx, "a", domain.AccountConfig{MaxPositions: 1})
	assert.ErrorIs(t, err, domain.ErrAccountExists)

	err = a.RegisterAccount(ctx, "", domain.AccountConfig{})
	assert.Error(t, err)

	err = a.UpdateAccountData(ctx, "missing", domain.AccountData{Equity: 1})
	assert.ErrorIs(t, err, domain.ErrUnknownAccount)

	require.NoError(t, a.UpdateAccountData(ctx, "a", domain.AccountData{Equity: 1000}))
	assert.Equal(t, 1000.0, multi.updates["a"].Equity)
	assert.Equal(t, testNow, multi.updates["a"].UpdatedAt)
	assert.Equal(t, []string{"a"}, a.Accounts())
}

func TestRegisterAccount_RegistrarFailureRollsBack(t *testing.T) {
	multi := &registeringMulti{registerErr: errors.New("full")}
	a := newTestAggregator(t, Collaborators{MultiAccount: multi})

	err := a.RegisterAccount(context.Background(), "a", domain.AccountConfig{})
	assert.Error(t, err)
	assert.Empty(t, a.Accounts())
}

func TestRegisterAccount_BuiltInLimits(t *testing.T) {
	a := newTestAggregator(t, Collaborators{})
	ctx := context.Background()
	require.NoError(t, a.RegisterAccount(ctx, "a", domain.AccountConfig{MaxOrderNotional: 10_000}))

	res := a.CheckOrder(ctx, buy("a", 1))
	assert.False(t, res.Allowed)
	assert.Equal(t, ModuleAccount, res.Modules[len(res.Modules)-1].Module)
	assert.True(t, containsText(res.BlockReasons, "exceeds max"))
}

func TestLiquidityDegradationEmitsEvent(t *testing.T) {
	a := newTestAggregator(t, Collaborators{})
	a.UpdateMarketData("BAD", domain.MarketData{OrderBook: &domain.OrderBookSnapshot{
		Bids: []domain.PriceLevel{{Price: 90, Quantity: 1}},
		Asks: []domain.PriceLevel{{Price: 110, Quantity: 1}, {Price: 200, Quantity: 9}},
	}})

	events := a.Events().Recent(0)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventLiquidityWarning, last.Type)
	assert.Equal(t, "BAD", last.Payload["symbol"])
	assert.Equal(t, "critical", last.Payload["level"])
}

func TestCheckOrder_Concurrent(t *testing.T) {
	a := newTestAggregator(t, Collaborators{
		Breaker: &fakeBreaker{status: domain.BreakerStatus{Level: domain.BreakerNormal}},
	})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				a.UpdateMarketData("BTC-USD", domain.MarketData{OrderBook: ptr(deepBook())})
			}
			a.CheckOrder(context.Background(), buy("a", 1))
		}(i)
	}
	wg.Wait()

	stats := a.Statistics()
	assert.Equal(t, int64(50), stats.TotalChecks)
	assert.Equal(t, stats.TotalChecks, stats.AllowedOrders+stats.BlockedOrders)
}

func TestNewAggregator_Validation(t *testing.T) {
	_, err := NewAggregator(nil, Collaborators{}, DefaultConfig(), discardLogger())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.CollaboratorTimeout = 0
	_, err = NewAggregator(newTestEngine(t), Collaborators{}, cfg, discardLogger())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
