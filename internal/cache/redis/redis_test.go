package redis

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

func newTestClient(prefix string) *Client {
	// NewClient does not dial until a command is issued.
	return NewFromRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), prefix)
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "riskgate:book:BTC:bids", newTestClient("riskgate:").Key("book", "BTC", "bids"))
	assert.Equal(t, "risk_events", newTestClient("").Key("risk_events"))
}

func TestBookMirrorKeys(t *testing.T) {
	m := NewBookMirror(newTestClient("rg"), 0)
	k := m.keys("ETH-USD")
	assert.Equal(t, "rg:book:ETH-USD:bids", k.bids)
	assert.Equal(t, "rg:book:ETH-USD:ask:qty", k.askQty)
	assert.Equal(t, "rg:book:ETH-USD:meta", k.meta)
}

func TestBreakerReaderKey(t *testing.T) {
	assert.Equal(t, "rg:breaker:status", NewBreakerReader(newTestClient("rg")).key)
}

func TestReadSide(t *testing.T) {
	zs := redis.NewZSliceCmdResult([]redis.Z{
		{Score: 100.5, Member: "100.5"},
		{Score: 100, Member: "100"},
		{Score: 99, Member: 99}, // non-string members are skipped
	}, nil)
	qty := redis.NewMapStringStringResult(map[string]string{"100.5": "2", "100": "7.25"}, nil)

	levels := readSide(zs, qty)
	assert.Equal(t, []domain.PriceLevel{
		{Price: 100.5, Quantity: 2},
		{Price: 100, Quantity: 7.25},
	}, levels)
}

func TestPayloadBytes(t *testing.T) {
	b, ok := payloadBytes("abc")
	assert.True(t, ok)
	assert.Equal(t, []byte("abc"), b)

	b, ok = payloadBytes([]byte("xyz"))
	assert.True(t, ok)
	assert.Equal(t, []byte("xyz"), b)

	_, ok = payloadBytes(42)
	assert.False(t, ok)
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "0.1", formatFloat(0.1))
	assert.Equal(t, "100", formatFloat(100))
}
