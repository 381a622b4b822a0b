// Package notify delivers risk alerts to operators over chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Config controls which events reach the senders and how often.
type Config struct {
	// Events lists the event types that are forwarded. Empty means all.
	Events []string
	// Interval is the minimum spacing between two alerts of the same event
	// type. Zero disables throttling.
	Interval time.Duration
	// Burst is the number of alerts of one type allowed back to back.
	Burst int
}

// Notifier fans an alert out to every sender. Alerts are filtered by event
// type and throttled per type so a burst of blocked orders does not flood
// the channel.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	cfg     Config
	logger  *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewNotifier creates a Notifier delivering to senders.
func NewNotifier(senders []Sender, cfg Config, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(cfg.Events))
	for _, e := range cfg.Events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &Notifier{
		senders:  senders,
		events:   allowed,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "notifier")),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Notify sends title and message for event unless it is filtered out or
// throttled.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		return nil
	}
	if !n.allow(event) {
		n.logger.DebugContext(ctx, "notification throttled", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll bypasses filtering and throttling.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// Senders returns the configured sender names.
func (n *Notifier) Senders() []string {
	names := make([]string, len(n.senders))
	for i, s := range n.senders {
		names[i] = s.Name()
	}
	return names
}

func (n *Notifier) allow(event string) bool {
	if n.cfg.Interval <= 0 {
		return true
	}
	n.mu.Lock()
	lim, ok := n.limiters[event]
	if !ok {
		lim = rate.NewLimiter(rate.Every(n.cfg.Interval), n.cfg.Burst)
		n.limiters[event] = lim
	}
	n.mu.Unlock()
	return lim.Allow()
}

// dispatch delivers to every sender; one failing sender does not stop the
// others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
