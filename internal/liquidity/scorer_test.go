package liquidity

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

func newTestScorer(clock *fakeClock) (*BookStore, *Scorer) {
	cfg := DefaultConfig()
	books := NewBookStore(cfg.HistoryLength)
	slip := NewSlippageEstimator(books, cfg)
	return books, NewScorer(books, slip, cfg, clock.Now, nil)
}

func TestScorer_Compute(t *testing.T) {
	clock := newFakeClock()
	books, s := newTestScorer(clock)
	books.Update("X", balancedBook())

	score := s.Score("X")
	require.True(t, score.Success)
	assert.Equal(t, domain.LiquiditySubScores{Spread: 60, Imbalance: 100, Depth: 0, Impact: 60}, score.SubScores)
	assert.Equal(t, 53, score.Score)
	assert.Equal(t, domain.LiquidityModerate, score.Level)
	assert.Zero(t, score.Metrics.ImbalanceRatio)
	assert.Equal(t, clock.Now(), score.Timestamp)
}

func TestScorer_WeightedSumWithinBounds(t *testing.T) {
	clock := newFakeClock()
	books, s := newTestScorer(clock)
	w := DefaultConfig().Weights

	snaps := map[string]domain.OrderBookSnapshot{
		"balanced": balancedBook(),
		"broken":   brokenBook(),
		"deep": book(
			levels(50000, 200, 49999, 200),
			levels(50001, 200, 50002, 200),
		),
		"bids only": book(levels(10, 5), nil),
	}
	for name, snap := range snaps {
		books.Update(name, snap)
		score := s.Refresh(name)
		require.True(t, score.Success, name)

		sub := score.SubScores
		want := int(math.Round(w.Spread*float64(sub.Spread) + w.Imbalance*float64(sub.Imbalance) +
			w.Depth*float64(sub.Depth) + w.Impact*float64(sub.Impact)))
		assert.Equal(t, want, score.Score, name)
		assert.GreaterOrEqual(t, score.Score, 0, name)
		assert.LessOrEqual(t, score.Score, 100, name)
	}
}

func TestScorer_DeepBookIsExcellent(t *testing.T) {
	books, s := newTestScorer(newFakeClock())
	books.Update("BTC-USD", book(
		levels(50000, 200, 49999, 200),
		levels(50001, 200, 50002, 200),
	))

	score := s.Score("BTC-USD")
	assert.Equal(t, domain.LiquidityExcellent, score.Level)
	assert.Equal(t, 100, score.SubScores.Depth)
}

func TestScorer_WiderSpreadNeverScoresHigher(t *testing.T) {
	books, s := newTestScorer(newFakeClock())
	prev := math.MaxInt
	for i, ask := range []float64{100.005, 100.05, 100.1, 100.3, 100.8, 102, 110} {
		sym := string(rune('A' + i))
		books.Update(sym, book(levels(100, 50, 99.9, 50), levels(ask, 50, ask+0.1, 50)))
		score := s.Score(sym)
		assert.LessOrEqual(t, score.SubScores.Spread, prev, "ask %v", ask)
		prev = score.SubScores.Spread
	}
}

func TestScorer_CachesWithinTTL(t *testing.T) {
	clock := newFakeClock()
	books, s := newTestScorer(clock)
	books.Update("X", balancedBook())

	first := s.Score("X")
	books.Update("X", brokenBook())
	clock.Advance(time.Second)
	assert.Equal(t, first, s.Score("X"))

	clock.Advance(5 * time.Second)
	fresh := s.Score("X")
	assert.NotEqual(t, first.Score, fresh.Score)
	assert.Equal(t, domain.LiquidityCritical, fresh.Level)
}

func TestScorer_UnknownSymbol(t *testing.T) {
	_, s := newTestScorer(newFakeClock())

	score := s.Score("NOPE")
	assert.False(t, score.Success)
	assert.Equal(t, domain.LiquidityCritical, score.Level)
	assert.NotEmpty(t, score.Error)
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		score int
		want  domain.LiquidityLevel
	}{
		{100, domain.LiquidityExcellent},
		{80, domain.LiquidityExcellent},
		{79, domain.LiquidityGood},
		{60, domain.LiquidityGood},
		{59, domain.LiquidityModerate},
		{40, domain.LiquidityModerate},
		{20, domain.LiquidityPoor},
		{19, domain.LiquidityCritical},
		{0, domain.LiquidityCritical},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, levelFor(tc.score), "score %d", tc.score)
	}
}
