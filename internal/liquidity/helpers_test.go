package liquidity

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func levels(pairs ...float64) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.PriceLevel{Price: pairs[i], Quantity: pairs[i+1]})
	}
	return out
}

func book(bids, asks []domain.PriceLevel) domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{Bids: bids, Asks: asks}
}

// balancedBook has a 0.1 spread and three levels a side.
func balancedBook() domain.OrderBookSnapshot {
	return book(
		levels(99.9, 10, 99.8, 50, 99.7, 50),
		levels(100, 10, 100.1, 50, 100.2, 50),
	)
}

// brokenBook is one-sided in depth with a very wide spread.
func brokenBook() domain.OrderBookSnapshot {
	return book(
		levels(90, 1),
		levels(110, 1, 200, 9),
	)
}

func newTestEngine(t *testing.T, clock *fakeClock) *Engine {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	e, err := NewEngine(DefaultConfig(), logger, WithClock(clock.Now))
	require.NoError(t, err)
	return e
}
