package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// Default channel and stream names used by BusSink.
const (
	EventsChannel = "risk_events"
	EventsStream  = "risk:events"
)

var errSinkClosed = errors.New("risk: sink closed")

// AsyncSink decouples a slow sink from the order path. Events are queued on
// a bounded buffer and delivered by a single worker; when the buffer is full
// the event is dropped and Publish reports it.
type AsyncSink struct {
	name    string
	next    Sink
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan domain.RiskEvent
	done   chan struct{}
}

// NewAsyncSink starts a worker delivering to next. Each delivery is bounded
// by timeout.
func NewAsyncSink(name string, next Sink, buffer int, timeout time.Duration, logger *slog.Logger) *AsyncSink {
	if buffer < 1 {
		buffer = 1
	}
	s := &AsyncSink{
		name:    name,
		next:    next,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "async_sink"), slog.String("sink", name)),
		queue:   make(chan domain.RiskEvent, buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Publish enqueues evt without blocking.
func (s *AsyncSink) Publish(_ context.Context, evt domain.RiskEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errSinkClosed
	}
	select {
	case s.queue <- evt:
		return nil
	default:
		return fmt.Errorf("risk: sink %s buffer full, dropped event %s", s.name, evt.ID)
	}
}

// Close stops accepting events and waits for the queue to drain.
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for evt := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.next.Publish(ctx, evt); err != nil {
			s.logger.Error("deliver event",
				slog.String("event_id", evt.ID),
				slog.String("event_type", evt.Type),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}
}

// BusSink publishes events as JSON on a SignalBus channel and appends them to
// a durable stream.
type BusSink struct {
	bus     domain.SignalBus
	channel string
	stream  string
}

// NewBusSink creates a BusSink. Empty names fall back to EventsChannel and
// EventsStream.
func NewBusSink(bus domain.SignalBus, channel, stream string) *BusSink {
	if channel == "" {
		channel = EventsChannel
	}
	if stream == "" {
		stream = EventsStream
	}
	return &BusSink{bus: bus, channel: channel, stream: stream}
}

// Publish implements Sink.
func (b *BusSink) Publish(ctx context.Context, evt domain.RiskEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("risk: marshal event: %w", err)
	}
	if err := b.bus.Publish(ctx, b.channel, data); err != nil {
		return fmt.Errorf("risk: publish event: %w", err)
	}
	if err := b.bus.StreamAppend(ctx, b.stream, data); err != nil {
		return fmt.Errorf("risk: append event: %w", err)
	}
	return nil
}

// StoreSink persists events to a RiskEventStore.
type StoreSink struct {
	store domain.RiskEventStore
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(store domain.RiskEventStore) *StoreSink {
	return &StoreSink{store: store}
}

// Publish implements Sink.
func (s *StoreSink) Publish(ctx context.Context, evt domain.RiskEvent) error {
	return s.store.Insert(ctx, evt)
}

// Notifier is the subset of notify.Notifier used by NotifySink.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// NotifySink turns risk events into operator notifications. Filtering by
// event type is left to the Notifier.
type NotifySink struct {
	notifier Notifier
}

// NewNotifySink creates a NotifySink.
func NewNotifySink(n Notifier) *NotifySink {
	return &NotifySink{notifier: n}
}

// Publish implements Sink.
func (s *NotifySink) Publish(ctx context.Context, evt domain.RiskEvent) error {
	title := fmt.Sprintf("riskgate %s: %s", evt.Module, strings.ReplaceAll(evt.Type, "_", " "))
	return s.notifier.Notify(ctx, evt.Type, title, formatPayload(evt.Payload))
}

// formatPayload renders a payload as sorted key=value lines.
func formatPayload(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, payload[k])
	}
	return strings.TrimSuffix(b.String(), "\n")
}
