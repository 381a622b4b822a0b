package risk

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/riskgate/internal/domain"
	"github.com/alanyoungcy/riskgate/internal/liquidity"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBreaker struct {
	status domain.BreakerStatus
	err    error
	delay  time.Duration
	panics bool
	calls  int
	mu     sync.Mutex
}

func (f *fakeBreaker) Status(ctx context.Context) (domain.BreakerStatus, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics {
		panic("breaker exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.BreakerStatus{}, ctx.Err()
		}
	}
	return f.status, f.err
}

type fakeMulti struct {
	result     domain.CheckResult
	err        error
	calls      int
	registered map[string]domain.AccountConfig
	updates    map[string]domain.AccountData
}

func (f *fakeMulti) CheckOrder(_ context.Context, _ string, _ domain.OrderRequest) (domain.CheckResult, error) {
	f.calls++
	return f.result, f.err
}

type registeringMulti struct {
	fakeMulti
	registerErr error
}

func (f *registeringMulti) RegisterAccount(_ context.Context, id string, cfg domain.AccountConfig) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	if f.registered == nil {
		f.registered = make(map[string]domain.AccountConfig)
	}
	f.registered[id] = cfg
	return nil
}

func (f *registeringMulti) UpdateAccount(_ context.Context, id string, data domain.AccountData) error {
	if f.updates == nil {
		f.updates = make(map[string]domain.AccountData)
	}
	f.updates[id] = data
	return nil
}

type fakePortfolio struct {
	result domain.CheckResult
	err    error
	calls  int
	last   domain.PortfolioOrder
}

func (f *fakePortfolio) CheckOrder(_ context.Context, o domain.PortfolioOrder) (domain.CheckResult, error) {
	f.calls++
	f.last = o
	return f.result, f.err
}

type fakeAccount struct {
	result domain.CheckResult
	err    error
	calls  int
	data   domain.AccountData
}

func (f *fakeAccount) CheckOpenPosition(_ context.Context, _ domain.PositionRequest) (domain.CheckResult, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeAccount) UpdateAccount(_ context.Context, data domain.AccountData) error {
	f.data = data
	return nil
}

func allow(warnings ...string) domain.CheckResult {
	return domain.CheckResult{Allowed: true, Warnings: warnings}
}

func deny(reasons ...string) domain.CheckResult {
	return domain.CheckResult{Allowed: false, Reasons: reasons}
}

// deepBook scores excellent and fills small orders at the best level.
func deepBook() domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		Bids: []domain.PriceLevel{{Price: 50000, Quantity: 200}, {Price: 49999, Quantity: 200}},
		Asks: []domain.PriceLevel{{Price: 50001, Quantity: 200}, {Price: 50002, Quantity: 200}},
	}
}

// thinBook makes any multi-level buy critically expensive.
func thinBook() domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		Bids: []domain.PriceLevel{{Price: 99, Quantity: 10}},
		Asks: []domain.PriceLevel{{Price: 100, Quantity: 1}, {Price: 110, Quantity: 1}},
	}
}

func newTestEngine(t *testing.T) *liquidity.Engine {
	t.Helper()
	e, err := liquidity.NewEngine(liquidity.DefaultConfig(), discardLogger(),
		liquidity.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return e
}

func newTestAggregator(t *testing.T, collab Collaborators, mutate ...func(*Config)) *Aggregator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CollaboratorTimeout = 50 * time.Millisecond
	for _, m := range mutate {
		m(&cfg)
	}
	a, err := NewAggregator(newTestEngine(t), collab, cfg, discardLogger(),
		WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	a.UpdateMarketData("BTC-USD", domain.MarketData{OrderBook: ptr(deepBook())})
	return a
}

func ptr[T any](v T) *T { return &v }

func buy(account string, amount float64) domain.OrderRequest {
	return domain.OrderRequest{
		AccountID: account,
		Symbol:    "BTC-USD",
		Side:      domain.OrderSideBuy,
		Amount:    amount,
		Price:     50001,
	}
}
