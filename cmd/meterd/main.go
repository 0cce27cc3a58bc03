// Command meterd runs the usage metering engine: the HTTP API, the Paddle
// webhook receiver, the meeting supervisor and the subscription reconciler.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Prat011/free-cluely-sub000/pkg/config"
	"github.com/Prat011/free-cluely-sub000/pkg/httpserver"
	"github.com/Prat011/free-cluely-sub000/pkg/logger"
	"github.com/Prat011/free-cluely-sub000/pkg/notifications"
	"github.com/Prat011/free-cluely-sub000/pkg/pg"
	"github.com/Prat011/free-cluely-sub000/pkg/redis"
	"github.com/Prat011/free-cluely-sub000/pkg/requestid"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/svc/metering"
)

const readinessTimeout = 2 * time.Second

type appConfig struct {
	Log      logger.Config
	HTTP     httpserver.Config
	Postgres pg.Config
	Metering metering.Config
}

func main() {
	if err := run(); err != nil {
		slog.Error("meterd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.FromConfig(cfg.Log, logger.WithContextExtractors(requestid.LoggerExtractor()))
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
		return err
	}
	store := pg.NewStore(pool)

	checks := map[string]httpserver.Check{"postgres": pg.Healthcheck(pool)}
	opts := []metering.Option{metering.WithLogger(log)}

	// Redis is only needed when more than one instance handles billing events.
	if os.Getenv("REDIS_URL") != "" {
		var rcfg redis.Config
		if err := config.Load(&rcfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			return err
		}
		defer client.Close()
		checks["redis"] = redis.Healthcheck(client)
		opts = append(opts, metering.WithLocker(redis.NewLockerFromConfig(client, rcfg, redis.WithLockLogger(log))))
	}

	if os.Getenv("PADDLE_WEBHOOK_SECRET") != "" {
		var pcfg subscription.PaddleConfig
		if err := config.Load(&pcfg); err != nil {
			return err
		}
		paddle, err := subscription.NewPaddleProvider(pcfg)
		if err != nil {
			return err
		}
		opts = append(opts, metering.WithPaddle(paddle))
	} else {
		log.WarnContext(ctx, "PADDLE_WEBHOOK_SECRET is not set, billing webhooks are disabled")
	}

	deliverer := notifications.NewBroadcastDeliverer(16, notifications.WithBroadcastLogger(log))
	defer deliverer.Close()
	opts = append(opts,
		metering.WithNotifications(notifications.NewManager(store, deliverer, notifications.WithManagerLogger(log))),
		metering.WithNotificationStream(deliverer),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts = append(opts, metering.WithMetrics(metering.NewMetrics(reg)))

	catalog, err := metering.LoadCatalog(ctx, cfg.Metering)
	if err != nil {
		return err
	}
	engine, err := metering.New(store, catalog, cfg.Metering, opts...)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Get("/healthz", httpserver.HealthHandler(log, readinessTimeout, nil))
	router.Get("/readyz", httpserver.HealthHandler(log, readinessTimeout, checks))
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Mount("/", metering.NewHandler(engine))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.New(cfg.HTTP, httpserver.WithLogger(log)).Run(gctx, router)
	})
	g.Go(func() error { return ignoreCanceled(engine.RunSupervisor(gctx)) })
	g.Go(func() error { return ignoreCanceled(engine.RunReconciler(gctx)) })

	log.InfoContext(ctx, "meterd started",
		slog.String("addr", cfg.HTTP.Addr),
		slog.Int("plans", len(catalog.Plans())),
	)
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
