package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/riskgate/internal/blob/s3"
	"github.com/alanyoungcy/riskgate/internal/cache/redis"
	"github.com/alanyoungcy/riskgate/internal/config"
	"github.com/alanyoungcy/riskgate/internal/domain"
	"github.com/alanyoungcy/riskgate/internal/liquidity"
	"github.com/alanyoungcy/riskgate/internal/notify"
	"github.com/alanyoungcy/riskgate/internal/risk"
	"github.com/alanyoungcy/riskgate/internal/server/handler"
	"github.com/alanyoungcy/riskgate/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Risk core
	Engine     *liquidity.Engine
	Aggregator *risk.Aggregator

	// Redis
	SignalBus  domain.SignalBus
	BookMirror domain.BookMirror

	// Persistence
	EventStore domain.RiskEventStore
	Archiver   *s3blob.EventArchiver

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks are reported by GET /api/health.
	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.HealthCheck)}
	var collab risk.Collaborators
	var aggOpts []risk.Option

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		mirror := redis.NewBookMirror(redisClient, cfg.Redis.BookTTL.Duration)
		deps.BookMirror = mirror
		aggOpts = append(aggOpts, risk.WithBookMirror(mirror))
		if cfg.Redis.ReadBreaker {
			collab.Breaker = redis.NewBreakerReader(redisClient)
		}
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:             cfg.Postgres.DSN,
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			Database:        cfg.Postgres.Database,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxConns:        cfg.Postgres.PoolMaxConns,
			MinConns:        cfg.Postgres.PoolMinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime.Duration,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.EventStore = postgres.NewRiskEventStore(pgClient.Pool())
		deps.HealthChecks["postgres"] = pgClient.Ping
	}

	// --- S3 event archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewEventArchiver(s3blob.NewWriter(s3Client, ""), s3blob.ArchiverConfig{
			Prefix:        cfg.S3.ArchivePrefix,
			MaxBatch:      cfg.S3.ArchiveBatch,
			FlushInterval: cfg.S3.ArchiveFlush.Duration,
			MaxBuffered:   cfg.S3.ArchiveMaxBuffered,
		}, logger)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, notify.Config{
		Events:   cfg.Notify.Events,
		Interval: cfg.Notify.MinInterval.Duration,
		Burst:    cfg.Notify.Burst,
	}, logger)

	// --- Risk core ---
	engine, err := liquidity.NewEngine(cfg.Liquidity.EngineConfig(), logger)
	if err != nil {
		return fail(fmt.Errorf("wire: liquidity engine: %w", err))
	}
	agg, err := risk.NewAggregator(engine, collab, cfg.Risk.AggregatorConfig(), logger, aggOpts...)
	if err != nil {
		return fail(fmt.Errorf("wire: risk aggregator: %w", err))
	}
	deps.Engine = engine
	deps.Aggregator = agg

	if deps.Archiver != nil {
		archiver := deps.Archiver
		closers = append(closers, func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := archiver.Flush(flushCtx); err != nil {
				logger.Error("wire: final archive flush", slog.String("error", err.Error()))
			}
		})
	}
	// Sinks drain before the clients they write to are closed.
	for _, s := range subscribeSinks(deps, cfg, logger) {
		closers = append(closers, func() { _ = s.Close() })
	}

	// Sinks are attached first so registrations reach every backend.
	for _, acct := range cfg.Risk.Accounts {
		if err := agg.RegisterAccount(ctx, acct.ID, acct.Account()); err != nil {
			return fail(fmt.Errorf("wire: register account %q: %w", acct.ID, err))
		}
	}
	return deps, cleanup, nil
}

// subscribeSinks attaches every configured event sink to the aggregator's
// event log. Each sink runs behind its own queue so a slow backend never
// stalls an order check.
func subscribeSinks(deps *Dependencies, cfg *config.Config, logger *slog.Logger) []*risk.AsyncSink {
	events := deps.Aggregator.Events()
	var sinks []*risk.AsyncSink
	add := func(name string, s risk.Sink) {
		as := risk.NewAsyncSink(name, s, cfg.Risk.SinkBuffer, cfg.Risk.SinkTimeout.Duration, logger)
		events.Subscribe(name, as)
		sinks = append(sinks, as)
	}

	if deps.SignalBus != nil {
		add("bus", risk.NewBusSink(deps.SignalBus, risk.EventsChannel, risk.EventsStream))
	}
	if deps.EventStore != nil {
		add("postgres", risk.NewStoreSink(deps.EventStore))
	}
	if deps.Archiver != nil {
		add("s3_archive", deps.Archiver)
	}
	if len(deps.Notifier.Senders()) > 0 {
		add("notify", risk.NewNotifySink(deps.Notifier))
	}
	return sinks
}
