package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"toda/internal/app"
	"toda/internal/config"
	"toda/internal/events"
	"toda/internal/handler"
	"toda/internal/logging"
	"toda/internal/middleware"
	"toda/internal/notify"
	internalRedis "toda/internal/redis"
	"toda/internal/repository/postgres"
	"toda/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	slog.SetDefault(logging.NewLogger(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			slog.Warn("failed to initialize New Relic", "error", err)
		} else {
			slog.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer db.Close()
	slog.Info("connected to PostgreSQL", "host", cfg.Database.Host, "db", cfg.Database.DBName)

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		fatal("failed to connect to redis", err)
	}
	defer redisClient.Close()
	slog.Info("connected to Redis", "addr", cfg.Redis.Addr)

	publisher := newPublisher(cfg.Kafka)
	defer publisher.Close()

	pusher := newPusher(ctx, cfg.Firebase)

	// Wire dependencies.
	server, scheduler := wireServer(db, redisClient, nrApp, publisher, pusher, cfg)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(runCtx)
	}()

	// Start server in goroutine.
	go func() {
		slog.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	// Graceful shutdown.
	<-runCtx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	wg.Wait()

	if nrApp != nil {
		nrApp.Shutdown(cfg.Server.ShutdownTimeout)
	}
	slog.Info("server exited")
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

// newPublisher returns a Kafka publisher, or a no-op one without brokers.
func newPublisher(cfg config.KafkaConfig) events.Publisher {
	if len(cfg.Brokers) == 0 {
		slog.Info("booking event stream disabled")
		return events.NopPublisher{}
	}
	slog.Info("publishing booking events", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

// newPusher returns an FCM pusher, or a no-op one without credentials.
func newPusher(ctx context.Context, cfg config.FirebaseConfig) notify.Pusher {
	if cfg.CredentialsFile == "" {
		slog.Info("push notifications disabled")
		return notify.NopPusher{}
	}
	pusher, err := notify.NewFCMPusher(ctx, cfg.CredentialsFile)
	if err != nil {
		slog.Warn("push notifications disabled", "error", err)
		return notify.NopPusher{}
	}
	return pusher
}

// wireServer wires all dependencies and returns the HTTP server and the
// no-show scheduler.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	publisher events.Publisher,
	pusher notify.Pusher,
	cfg *config.Config,
) (*http.Server, *service.NoShowScheduler) {
	// Initialize Redis stores.
	queueStore := internalRedis.NewQueueStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	noShowQueue := internalRedis.NewNoShowQueue(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	tx := postgres.NewTransactor(db)
	passengerRepo := postgres.NewPassengerRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	indexRepo := postgres.NewBookingIndexRepository(db)
	contributionRepo := postgres.NewContributionRepository(db)
	historyRepo := postgres.NewRFIDHistoryRepository(db)

	// Initialize services.
	d := cfg.Dispatch
	notificationService := service.NewNotificationService(publisher, pusher)
	matchingService := service.NewMatchingService(tx, bookingRepo, driverRepo, queueStore, lockStore, cacheStore, notificationService, d.MatchLockTTL)
	queueService := service.NewQueueService(queueStore, driverRepo, indexRepo, matchingService, notificationService, d.PendingRematchLimit)
	bookingService := service.NewBookingService(tx, bookingRepo, passengerRepo, matchingService, noShowQueue, notificationService)
	driverService := service.NewDriverService(tx, driverRepo, contributionRepo, historyRepo, cacheStore)
	tripService := service.NewTripService(tx, bookingRepo, contributionRepo, noShowQueue, notificationService, service.TripConfig{
		NoShowWindow:       d.NoShowWindow,
		ContributionAmount: d.ContributionAmount,
	})
	scheduler := service.NewNoShowScheduler(noShowQueue, tripService, notificationService, service.NoShowSchedulerConfig{
		Tick:       d.NoShowTick,
		Batch:      d.NoShowBatch,
		AutoReport: d.NoShowAutoReport,
	})

	// Initialize handlers.
	passengerHandler := handler.NewPassengerHandler(passengerRepo)
	driverHandler := handler.NewDriverHandler(driverService, queueService, driverRepo)
	queueHandler := handler.NewQueueHandler(queueService)
	bookingHandler := handler.NewBookingHandler(bookingService, matchingService, tripService)

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	}

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		PassengerHandler: passengerHandler,
		DriverHandler:    driverHandler,
		QueueHandler:     queueHandler,
		BookingHandler:   bookingHandler,
		RedisClient:      redisClient,
		NewRelicApp:      nrApp,
		RateLimiter:      limiter,
	})

	// Create HTTP server. Status websockets reset their own deadlines after
	// the upgrade.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, scheduler
}
