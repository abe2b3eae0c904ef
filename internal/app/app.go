package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinetix/internal/config"
	"github.com/kirinyoku/cinetix/internal/gateway/mercadopago"
	"github.com/kirinyoku/cinetix/internal/messaging"
	"github.com/kirinyoku/cinetix/internal/metrics"
	"github.com/kirinyoku/cinetix/internal/mongo"
	"github.com/kirinyoku/cinetix/internal/postgres"
	"github.com/kirinyoku/cinetix/internal/realtime"
	"github.com/kirinyoku/cinetix/internal/redis"
	mongorepo "github.com/kirinyoku/cinetix/internal/repository/mongo"
	postgresrepo "github.com/kirinyoku/cinetix/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/cinetix/internal/repository/redis"
	"github.com/kirinyoku/cinetix/internal/service"
	"github.com/kirinyoku/cinetix/internal/service/checkout"
	"github.com/kirinyoku/cinetix/internal/service/orders"
	"github.com/kirinyoku/cinetix/internal/service/payments"
	httpgin "github.com/kirinyoku/cinetix/internal/transport/http/gin"
	"github.com/kirinyoku/cinetix/internal/uow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server

	pool        *pgxpool.Pool
	rdb         *goredis.Client
	mongoClient *mongodriver.Client
	publisher   messaging.Publisher

	hub        *realtime.Hub
	relay      *realtime.Relay
	dispatcher *messaging.OutboxDispatcher
}

type Options struct {
	// Migrate applies pending schema migrations before serving.
	Migrate bool
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	ready := false
	defer func() {
		if !ready {
			a.close()
		}
	}()

	var err error

	// Initialize dependencies
	a.pool, err = postgres.New(ctx, PostgresConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	if opts.Migrate {
		if _, err := postgres.Migrate(ctx, a.pool, logger); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	a.rdb, err = redis.New(ctx, RedisConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize repositories
	store := postgresrepo.NewStore(a.pool)
	cache := redisrepo.New(a.rdb)
	pubsub := redisrepo.NewOrderStatusPubSub(a.rdb, logger)
	limiter := redisrepo.NewSlidingWindowLimiter(a.rdb, "preference", cfg.Limits.PreferenceRate, cfg.Limits.PreferenceWindow)
	ledger := redisrepo.NewIdempotencyStore(a.rdb, cfg.Limits.LedgerTTL)

	var deliveries *mongorepo.DeliveryRepo
	if cfg.Mongo.URI != "" {
		client, db, err := mongo.New(ctx, mongo.Config{URI: cfg.Mongo.URI, DB: cfg.Mongo.DB})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongo: %w", err)
		}
		a.mongoClient = client

		deliveries = mongorepo.NewDeliveryRepo(db)
		if err := deliveries.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create delivery log indexes: %w", err)
		}
	} else {
		logger.Warn("MONGO_URI not set, webhook delivery log disabled")
	}

	if cfg.Rabbit.URL != "" {
		pub, err := messaging.NewRabbitPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rabbitmq: %w", err)
		}
		a.publisher = pub
		a.dispatcher = messaging.NewOutboxDispatcher(store.Outbox(), pub, messaging.DispatcherConfig{}, m, logger)
	} else {
		logger.Warn("RABBIT_URL not set, payment events stay in the outbox")
	}

	gateway := mercadopago.NewClient(mercadopago.Config{
		BaseURL:     cfg.MP.BaseURL,
		AccessToken: cfg.MP.AccessToken,
		Timeout:     cfg.MP.Timeout,
	}, m)

	// Initialize services
	checkoutTx := uow.New(store, func(db postgresrepo.DB) checkout.Tx { return store.CheckoutTx(db) })
	paymentTx := uow.New(store, func(db postgresrepo.DB) payments.Tx { return store.PaymentTx(db) })

	deps := payments.Deps{
		Gateway:  gateway,
		Orders:   store.Orders(),
		TxM:      paymentTx,
		Ledger:   ledger,
		Notifier: pubsub,
		Cache:    cache,
		Metrics:  m,
	}
	if cfg.IsProduction() {
		deps.Verifier = mercadopago.NewVerifier(cfg.MP.WebhookSecret)
	} else {
		logger.Warn("webhook signature verification disabled outside production")
	}

	var orderLog orders.DeliveryLog
	if deliveries != nil {
		deps.Log = deliveries
		orderLog = deliveries
	}

	svcs := &service.Services{
		Checkout: checkout.New(store.Orders(), checkoutTx, gateway, limiter, m, logger, checkout.Config{
			TicketPrice:         cfg.Checkout.TicketPrice,
			Brand:               cfg.Checkout.Brand,
			Currency:            cfg.Checkout.Currency,
			PublicBaseURL:       cfg.Server.PublicBaseURL,
			NotificationURL:     cfg.MP.NotificationURL,
			StatementDescriptor: cfg.Checkout.StatementDescriptor,
		}),
		Payments: payments.New(deps, logger, payments.Config{
			StatusCacheTTL: cfg.Limits.StatusCacheTTL,
		}),
		Orders: orders.New(store.Orders(), orderLog),
	}

	// Realtime
	a.hub = realtime.NewHub(0, m)
	a.relay = realtime.NewRelay(pubsub, a.hub, logger)
	ws := realtime.NewWSHandler(a.hub, svcs.Orders, cfg.Server.CORSOrigins, logger)

	// Initialize Gin router
	router := httpgin.NewRouter(svcs, ws, httpgin.RouterConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ready = true
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error { return a.hub.Run(gCtx) })
	g.Go(func() error { return a.relay.Run(gCtx) })

	if a.dispatcher != nil {
		g.Go(func() error { return a.dispatcher.Run(gCtx) })
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("close rabbitmq publisher", "error", err)
		}
	}
	if a.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.mongoClient.Disconnect(ctx)
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func PostgresConfig(cfg *config.Config) postgres.Config {
	return postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Name:     cfg.Postgres.Name,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.MaxConns,
	}
}

func RedisConfig(cfg *config.Config) redis.Config {
	return redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}
