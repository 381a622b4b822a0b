package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/riskgate/internal/feed"
	"github.com/alanyoungcy/riskgate/internal/risk"
	"github.com/alanyoungcy/riskgate/internal/server"
	"github.com/alanyoungcy/riskgate/internal/server/handler"
	"github.com/alanyoungcy/riskgate/internal/server/ws"
)

const (
	statsInterval   = time.Minute
	shutdownTimeout = 5 * time.Second
)

// runner is a long-lived market data source.
type runner interface {
	Run(ctx context.Context) error
}

// FullMode serves the API and ingests market data in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startFeed(ctx, g, deps); err != nil {
		return err
	}
	a.startHTTPServer(ctx, g, deps)
	a.startBackground(ctx, g, deps)
	return g.Wait()
}

// ServerMode serves the API only. Market data arrives through
// POST /api/market/{symbol}.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startBackground(ctx, g, deps)
	return g.Wait()
}

// FeedMode ingests market data without serving the API. The books are
// mirrored to Redis and liquidity warnings still reach the event sinks.
func (a *App) FeedMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting feed mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startFeed(ctx, g, deps); err != nil {
		return err
	}
	a.startBackground(ctx, g, deps)
	return g.Wait()
}

// newFeed picks the market data source configured in [feed].
func (a *App) newFeed(deps *Dependencies) (runner, error) {
	switch a.cfg.Feed.Source {
	case "websocket":
		return feed.NewWSFeed(a.cfg.Feed.WSURL, a.cfg.Feed.Symbols, deps.Aggregator, a.logger), nil
	case "redis", "":
		if deps.SignalBus == nil {
			return nil, errors.New("app: redis feed requires redis.enabled")
		}
		return feed.NewMarketDataFeeder(deps.SignalBus, a.cfg.Feed.Channel, deps.Aggregator, a.logger), nil
	default:
		return nil, fmt.Errorf("app: unsupported feed source %q", a.cfg.Feed.Source)
	}
}

func (a *App) startFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	f, err := a.newFeed(deps)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "market data feed configured", slog.String("source", a.cfg.Feed.Source))
	g.Go(func() error {
		return f.Run(ctx)
	})
	return nil
}

// startBackground runs the archive flusher and the periodic statistics log.
func (a *App) startBackground(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}
	g.Go(func() error {
		return a.logStatistics(ctx, deps.Aggregator)
	})
}

func (a *App) logStatistics(ctx context.Context, agg *risk.Aggregator) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st := agg.Statistics()
			a.logger.InfoContext(ctx, "risk statistics",
				slog.Int64("total_checks", st.TotalChecks),
				slog.Int64("allowed", st.AllowedOrders),
				slog.Int64("blocked", st.BlockedOrders),
				slog.Int64("warnings", st.WarningsIssued),
				slog.Int64("collaborator_errors", st.CollaboratorErrors),
				slog.Bool("trading_enabled", agg.TradingEnabled()),
			)
		}
	}
}

// startHTTPServer adds the API server and the websocket hub to the errgroup.
// The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	agg := deps.Aggregator

	// With Redis the hub relays the shared event channel so clients see
	// events from every instance; otherwise it listens to this process only.
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ws.Config{Mode: a.cfg.Mode, Channels: []string{risk.EventsChannel}}, a.logger)
	} else {
		hub = ws.NewHub(nil, ws.Config{Mode: a.cfg.Mode}, a.logger)
		agg.Events().Subscribe("websocket", hub)
	}
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKey:         a.cfg.Server.APIKey,
		RateLimitRPS:   a.cfg.Server.RateLimitRPS,
		RateLimitBurst: a.cfg.Server.RateLimitBurst,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(deps.HealthChecks),
		Status:    handler.NewStatusHandler(a.cfg.Mode, a.startedAt, agg.Engine().Symbols),
		Orders:    handler.NewOrderHandler(agg, a.logger),
		Market:    handler.NewMarketHandler(agg),
		Liquidity: handler.NewLiquidityHandler(agg),
		Accounts:  handler.NewAccountHandler(agg, a.logger),
		Risk:      handler.NewRiskHandler(agg, agg.Events(), deps.EventStore, a.logger),
	}, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
