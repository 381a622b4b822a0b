package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

var _ domain.BookMirror = (*BookMirror)(nil)

// BookMirror implements domain.BookMirror with sorted sets and hashes.
//
// Key schema:
//
//	book:{symbol}:bids      - sorted set of bid prices (score = price)
//	book:{symbol}:asks      - sorted set of ask prices (score = price)
//	book:{symbol}:bid:qty   - hash price -> quantity
//	book:{symbol}:ask:qty   - hash price -> quantity
//	book:{symbol}:meta      - hash with "ts" (unix nanos) and "mid"
type BookMirror struct {
	c   *Client
	ttl time.Duration
}

// NewBookMirror creates a BookMirror. A positive ttl expires mirrored books
// that stop updating.
func NewBookMirror(c *Client, ttl time.Duration) *BookMirror {
	return &BookMirror{c: c, ttl: ttl}
}

type bookKeys struct {
	bids, asks, bidQty, askQty, meta string
}

func (m *BookMirror) keys(symbol string) bookKeys {
	return bookKeys{
		bids:   m.c.Key("book", symbol, "bids"),
		asks:   m.c.Key("book", symbol, "asks"),
		bidQty: m.c.Key("book", symbol, "bid", "qty"),
		askQty: m.c.Key("book", symbol, "ask", "qty"),
		meta:   m.c.Key("book", symbol, "meta"),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Mirror atomically replaces the stored book for snap.Symbol.
func (m *BookMirror) Mirror(ctx context.Context, snap domain.OrderBookSnapshot) error {
	k := m.keys(snap.Symbol)
	pipe := m.c.rdb.TxPipeline()
	pipe.Del(ctx, k.bids, k.asks, k.bidQty, k.askQty, k.meta)

	writeSide := func(zKey, hKey string, levels []domain.PriceLevel) {
		for _, lvl := range levels {
			price := formatFloat(lvl.Price)
			pipe.ZAdd(ctx, zKey, redis.Z{Score: lvl.Price, Member: price})
			pipe.HSet(ctx, hKey, price, formatFloat(lvl.Quantity))
		}
	}
	writeSide(k.bids, k.bidQty, snap.Bids)
	writeSide(k.asks, k.askQty, snap.Asks)

	pipe.HSet(ctx, k.meta,
		"ts", strconv.FormatInt(snap.Timestamp.UnixNano(), 10),
		"mid", formatFloat(snap.MidPrice()),
	)
	if m.ttl > 0 {
		for _, key := range []string{k.bids, k.asks, k.bidQty, k.askQty, k.meta} {
			pipe.Expire(ctx, key, m.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mirror book %s: %w", snap.Symbol, err)
	}
	return nil
}

// Load rebuilds the mirrored book for symbol, bids descending and asks
// ascending. It returns domain.ErrNotFound when nothing is stored.
func (m *BookMirror) Load(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	k := m.keys(symbol)
	pipe := m.c.rdb.Pipeline()
	bidsCmd := pipe.ZRevRangeWithScores(ctx, k.bids, 0, -1)
	asksCmd := pipe.ZRangeWithScores(ctx, k.asks, 0, -1)
	bidQtyCmd := pipe.HGetAll(ctx, k.bidQty)
	askQtyCmd := pipe.HGetAll(ctx, k.askQty)
	metaCmd := pipe.HGetAll(ctx, k.meta)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: load book %s: %w", symbol, err)
	}

	meta, _ := metaCmd.Result()
	if len(meta) == 0 {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: load book %s: %w", symbol, domain.ErrNotFound)
	}

	snap := domain.OrderBookSnapshot{Symbol: symbol}
	if ns, err := strconv.ParseInt(meta["ts"], 10, 64); err == nil {
		snap.Timestamp = time.Unix(0, ns).UTC()
	}
	snap.Bids = readSide(bidsCmd, bidQtyCmd)
	snap.Asks = readSide(asksCmd, askQtyCmd)
	return snap, nil
}

func readSide(zCmd *redis.ZSliceCmd, qtyCmd *redis.MapStringStringCmd) []domain.PriceLevel {
	zs, _ := zCmd.Result()
	qty, _ := qtyCmd.Result()
	levels := make([]domain.PriceLevel, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		q, _ := strconv.ParseFloat(qty[member], 64)
		levels = append(levels, domain.PriceLevel{Price: z.Score, Quantity: q})
	}
	return levels
}
