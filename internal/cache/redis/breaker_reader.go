package redis

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

var _ domain.CircuitBreaker = (*BreakerReader)(nil)

// BreakerReader reads the circuit-breaker state another process maintains in
// the hash {prefix}:breaker:status with fields "level" and "reason". A
// missing hash means normal.
type BreakerReader struct {
	c   *Client
	key string
}

// NewBreakerReader creates a BreakerReader.
func NewBreakerReader(c *Client) *BreakerReader {
	return &BreakerReader{c: c, key: c.Key("breaker", "status")}
}

// Status implements domain.CircuitBreaker.
func (b *BreakerReader) Status(ctx context.Context) (domain.BreakerStatus, error) {
	vals, err := b.c.rdb.HGetAll(ctx, b.key).Result()
	if err != nil {
		return domain.BreakerStatus{}, fmt.Errorf("redis: read breaker status: %w", err)
	}
	level := domain.BreakerLevel(vals["level"])
	if level == "" {
		level = domain.BreakerNormal
	}
	return domain.BreakerStatus{Level: level, Reason: vals["reason"]}, nil
}
