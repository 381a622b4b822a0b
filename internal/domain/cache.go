package domain

import "context"

// BookMirror publishes order book snapshots to shared storage so that other
// processes can inspect the books the risk core is scoring against.
type BookMirror interface {
	Mirror(ctx context.Context, snap OrderBookSnapshot) error
	Load(ctx context.Context, symbol string) (OrderBookSnapshot, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
