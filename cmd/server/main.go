package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridematch/internal/app"
	"ridematch/internal/auth"
	"ridematch/internal/config"
	"ridematch/internal/handler"
	"ridematch/internal/logger"
	internalRedis "ridematch/internal/redis"
	"ridematch/internal/repository/postgres"
	"ridematch/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Log.Level)
	slog.SetDefault(log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Error("failed to initialize New Relic", slog.Any("error", err))
		} else {
			log.Info("New Relic enabled", slog.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	notifier := app.NewNotifier(ctx, cfg.RabbitMQ, log)
	defer notifier.Close()

	server, dispatcher := wireServer(db, redisClient, notifier, nrApp, cfg, log)

	go func() {
		log.Info("starting server", slog.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.Any("error", err))
	}
	// Background searches outlive their requests; let them finish before the
	// stores close.
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Warn("dispatcher did not drain", slog.Any("error", err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the
// background dispatcher.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	notifier *app.Notifier,
	nrApp *newrelic.Application,
	cfg *config.Config,
	log *slog.Logger,
) (*http.Server, *service.Dispatcher) {
	m := cfg.Matching

	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)

	// Initialize repositories.
	userRepo := postgres.NewUserRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	rideRepo := postgres.NewRideRepository(db)

	// Initialize services.
	finder := service.NewCandidateFinder(locationStore, driverRepo, m.CandidateLimit, m.DriverSpeedKmh)
	coordinator := service.NewAssignmentCoordinator(rideRepo, driverRepo, notifier, log)
	matchingService := service.NewMatchingService(finder, coordinator, rideRepo, m.ExpansionRadii, m.DefaultRadius, log)
	dispatcher := service.NewDispatcher(matchingService, rideRepo, lockStore, nrApp, m.Workers, m.SearchLockTTL, log)
	rideService := service.NewRideService(rideRepo, coordinator, dispatcher, notifier, log)
	driverService := service.NewDriverService(locationStore, driverRepo, finder, m.DefaultRadius, log)

	// Initialize handlers.
	userHandler := handler.NewUserHandler(userRepo)
	rideHandler := handler.NewRideHandler(rideService, matchingService, coordinator, log)
	driverHandler := handler.NewDriverHandler(driverService, coordinator)

	router := app.NewRouter(app.RouterDeps{
		UserHandler:   userHandler,
		RideHandler:   rideHandler,
		DriverHandler: driverHandler,
		Tokens:        auth.NewTokenService(cfg.Auth.JWTSecret),
		RedisClient:   redisClient,
		NewRelicApp:   nrApp,
		Logger:        log,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, dispatcher
}
