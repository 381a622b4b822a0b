package feed

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// Stats counts what a feeder has processed.
type Stats struct {
	Applied  int64 `json:"applied"`
	Rejected int64 `json:"rejected"`
}

type counters struct {
	applied  atomic.Int64
	rejected atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{Applied: c.applied.Load(), Rejected: c.rejected.Load()}
}

// apply decodes raw and hands it to u. Bad ticks are counted and logged at
// debug; they never stop the feed.
func apply(raw []byte, u Updater, now func() time.Time, c *counters, logger *slog.Logger) {
	tick, err := DecodeTick(raw)
	if err != nil {
		c.rejected.Add(1)
		logger.Debug("market tick rejected",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(raw)),
		)
		return
	}
	u.UpdateMarketData(tick.Symbol, tick.MarketData(now()))
	c.applied.Add(1)
}

// MarketDataFeeder subscribes to a SignalBus channel and forwards every
// tick to an Updater.
type MarketDataFeeder struct {
	bus     domain.SignalBus
	channel string
	updater Updater
	logger  *slog.Logger
	now     func() time.Time
	stats   counters
}

// NewMarketDataFeeder creates a feeder on channel; empty means
// DefaultChannel.
func NewMarketDataFeeder(bus domain.SignalBus, channel string, updater Updater, logger *slog.Logger) *MarketDataFeeder {
	if channel == "" {
		channel = DefaultChannel
	}
	return &MarketDataFeeder{
		bus:     bus,
		channel: channel,
		updater: updater,
		logger:  logger.With(slog.String("component", "market_data_feeder")),
		now:     time.Now,
	}
}

// Run consumes the channel until ctx is done or the subscription closes.
func (f *MarketDataFeeder) Run(ctx context.Context) error {
	ch, err := f.bus.Subscribe(ctx, f.channel)
	if err != nil {
		return err
	}
	f.logger.Info("market data feeder started", slog.String("channel", f.channel))
	defer f.logger.Info("market data feeder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			apply(raw, f.updater, f.now, &f.stats, f.logger)
		}
	}
}

// Stats returns the processed tick counters.
func (f *MarketDataFeeder) Stats() Stats { return f.stats.snapshot() }
