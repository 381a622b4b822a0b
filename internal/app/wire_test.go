package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/riskgate/internal/config"
	"github.com/alanyoungcy/riskgate/internal/domain"
	"github.com/alanyoungcy/riskgate/internal/feed"
)

func offlineConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Redis.Enabled = false
	cfg.Postgres.Enabled = false
	cfg.S3.Enabled = false
	return &cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWireWithoutBackends(t *testing.T) {
	cfg := offlineConfig()
	cfg.Risk.Accounts = []config.AccountEntryConfig{{ID: "acct-1"}}

	deps, cleanup, err := Wire(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, deps.Aggregator)
	assert.Same(t, deps.Engine, deps.Aggregator.Engine())
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.EventStore)
	assert.Nil(t, deps.Archiver)
	assert.Empty(t, deps.HealthChecks)
	assert.Equal(t, []string{"acct-1"}, deps.Aggregator.Accounts())

	res := deps.Aggregator.CheckOrder(context.Background(), domain.OrderRequest{
		AccountID: "acct-1",
		Symbol:    "BTC-USD",
		Side:      domain.OrderSideBuy,
		Amount:    1,
		Price:     100,
	})
	assert.NotEmpty(t, res.Modules)
}

func TestWireAccountRegistrationsReachSinks(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	cfg := offlineConfig()
	cfg.Notify.DiscordWebhookURL = hook.URL
	cfg.Notify.Events = []string{domain.EventAccountRegistered}
	cfg.Notify.MinInterval.Duration = 0
	cfg.Risk.Accounts = []config.AccountEntryConfig{{ID: "acct-1"}, {ID: "acct-2"}}

	deps, cleanup, err := Wire(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"discord"}, deps.Notifier.Senders())
	cleanup()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	joined := strings.Join(bodies, "\n")
	assert.Contains(t, joined, "account registered")
	assert.Contains(t, joined, "acct-1")
	assert.Contains(t, joined, "acct-2")
}

func TestNewFeedSelection(t *testing.T) {
	cfg := offlineConfig()
	deps, cleanup, err := Wire(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	a := New(cfg, quietLogger())

	_, err = a.newFeed(deps)
	assert.ErrorContains(t, err, "requires redis")

	cfg.Feed.Source = "websocket"
	cfg.Feed.WSURL = "ws://localhost:9/feed"
	f, err := a.newFeed(deps)
	require.NoError(t, err)
	assert.IsType(t, &feed.WSFeed{}, f)

	cfg.Feed.Source = "carrier-pigeon"
	_, err = a.newFeed(deps)
	assert.Error(t, err)
}
