package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shop-orders/internal/catalog"
	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/domain/product"
	"github.com/xenking/shop-orders/internal/handler"
	"github.com/xenking/shop-orders/internal/outbox"
	"github.com/xenking/shop-orders/internal/storage/postgres"
	"github.com/xenking/shop-orders/internal/storage/redis"
	"github.com/xenking/shop-orders/pkg/health"
	"github.com/xenking/shop-orders/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the outbox relay,
// and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.PoolConfig())
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadiness(health.Check{Name: "postgres", Timeout: 5 * time.Second, Func: health.PingCheck(pool)})
	healthSvc.AddLiveness(health.Check{Name: "goroutines", Timeout: time.Second, Func: health.GoroutineCountCheck(10000)})

	// Product reads, optionally cached in Redis.
	var products product.Catalog = postgres.NewProductRepository(pool)
	var opts []order.Option
	if cfg.Redis.Addr != "" {
		cache := redis.New(cfg.Redis.Addr, cfg.Redis.Namespace)
		defer func() { _ = cache.Close() }()
		healthSvc.AddReadiness(health.Check{Name: "redis", Timeout: time.Second, Func: health.PingCheck(cache)})

		cached := catalog.NewCached(products, cache, cfg.Redis.TTL)
		products = cached
		opts = append(opts, order.WithStockObserver(cached))
		lg.Info("Product cache enabled", zap.String("redis", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}

	// Order workflow.
	orderCfg, err := cfg.OrderConfig()
	if err != nil {
		return err
	}
	opts = append(opts,
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)
	orderService, err := order.NewService(postgres.NewUnitOfWork(pool, cfg.Kafka.Topic), orderCfg, opts...)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		orderService,
		products,
	)
	if cfg.Auth.Disabled {
		lg.Warn("Authentication disabled")
	}
	auth := handler.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.Disabled)

	mux := chi.NewRouter()
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)
	mux.Mount("/", h.Routes(auth))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RouteContext(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:          cfg.CORS.Origins,
				Headers:          []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument("shop-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	g, gCtx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := outbox.NewKafkaPublisher(cfg.Kafka.Brokers)
		if err != nil {
			return errors.Wrap(err, "create kafka publisher")
		}
		defer func() { _ = publisher.Close() }()

		relay := outbox.NewRelay(
			postgres.NewOutboxSource(pool, cfg.Outbox.MaxAttempts),
			publisher,
			cfg.Outbox.Interval,
			cfg.Outbox.BatchSize,
		)
		g.Go(func() error {
			return relay.Run(gCtx)
		})
	} else {
		lg.Info("Outbox relay disabled: no Kafka brokers configured")
	}

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
