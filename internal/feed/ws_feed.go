package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	writeWait         = 10 * time.Second
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// subscribeCommand is sent once per connection.
type subscribeCommand struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// WSFeed reads ticks straight from an upstream websocket. It subscribes to
// the configured symbols on every connect and reconnects with exponential
// backoff.
type WSFeed struct {
	url     string
	symbols []string
	updater Updater
	logger  *slog.Logger
	now     func() time.Time
	dialer  websocket.Dialer
	stats   counters
}

// NewWSFeed creates a feed for url.
func NewWSFeed(url string, symbols []string, updater Updater, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		url:     url,
		symbols: symbols,
		updater: updater,
		logger:  logger.With(slog.String("component", "ws_feed")),
		now:     time.Now,
		dialer:  websocket.Dialer{HandshakeTimeout: 15 * time.Second},
	}
}

// Run keeps a connection open until ctx is done.
func (f *WSFeed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		started := time.Now()
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A connection that stayed up for a while resets the backoff.
		if time.Since(started) > maxReconnectDelay {
			delay = reconnectDelay
		}
		f.logger.Warn("market websocket disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// Stats returns the processed tick counters.
func (f *WSFeed) Stats() Stats { return f.stats.snapshot() }

func (f *WSFeed) runConnection(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.url, err)
	}
	defer conn.Close()

	if len(f.symbols) > 0 {
		cmd, _ := json.Marshal(subscribeCommand{Type: "subscribe", Symbols: f.symbols})
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, cmd); err != nil {
			return fmt.Errorf("feed: subscribe: %w", err)
		}
	}
	f.logger.Info("market websocket connected",
		slog.String("url", f.url),
		slog.Int("symbols", len(f.symbols)),
	)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go f.keepAlive(ctx, conn, stop)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		apply(raw, f.updater, f.now, &f.stats, f.logger)
	}
}

// keepAlive pings the upstream and closes the connection when ctx ends so
// that the blocked read returns.
func (f *WSFeed) keepAlive(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func errString(err error) string {
	if err == nil {
		return "connection closed"
	}
	return err.Error()
}
