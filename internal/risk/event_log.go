package risk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// Sink receives every risk event emitted by the pipeline.
type Sink interface {
	Publish(ctx context.Context, evt domain.RiskEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, evt domain.RiskEvent) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, evt domain.RiskEvent) error {
	return f(ctx, evt)
}

type namedSink struct {
	name string
	sink Sink
}

// EventLog is a fixed-capacity ring of risk events. Once full, the oldest
// event is overwritten. Every emitted event is handed to the subscribed sinks
// synchronously, in subscription order; a failing sink is logged and skipped.
type EventLog struct {
	mu    sync.RWMutex
	ring  []domain.RiskEvent
	next  int
	count int

	subsMu sync.RWMutex
	subs   []namedSink

	now    func() time.Time
	logger *slog.Logger
}

// NewEventLog creates an EventLog holding up to capacity events.
func NewEventLog(capacity int, now func() time.Time, logger *slog.Logger) *EventLog {
	if capacity < 1 {
		capacity = 1
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLog{
		ring:   make([]domain.RiskEvent, capacity),
		now:    now,
		logger: logger.With(slog.String("component", "risk_events")),
	}
}

// Subscribe registers a sink. Sinks are called in the order they subscribed.
func (l *EventLog) Subscribe(name string, s Sink) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	l.subs = append(l.subs, namedSink{name: name, sink: s})
}

// Emit records a new event and fans it out.
func (l *EventLog) Emit(ctx context.Context, module, eventType string, payload map[string]any) domain.RiskEvent {
	evt := domain.RiskEvent{
		ID:        uuid.NewString(),
		Module:    module,
		Type:      eventType,
		Payload:   payload,
		Timestamp: l.now(),
	}

	l.mu.Lock()
	l.ring[l.next] = evt
	l.next = (l.next + 1) % len(l.ring)
	if l.count < len(l.ring) {
		l.count++
	}
	l.mu.Unlock()

	l.subsMu.RLock()
	subs := l.subs
	l.subsMu.RUnlock()

	for _, s := range subs {
		if err := s.sink.Publish(ctx, evt); err != nil {
			l.logger.WarnContext(ctx, "sink failed",
				slog.String("sink", s.name),
				slog.String("event_type", evt.Type),
				slog.String("error", err.Error()),
			)
		}
	}
	return evt
}

// Recent returns up to n of the newest events, oldest first. n <= 0 returns
// everything retained.
func (l *EventLog) Recent(n int) []domain.RiskEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.count {
		n = l.count
	}
	out := make([]domain.RiskEvent, n)
	start := l.next - n
	if start < 0 {
		start += len(l.ring)
	}
	for i := range n {
		out[i] = l.ring[(start+i)%len(l.ring)]
	}
	return out
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}
