package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AhmetDumanli/Dakik-new/internal/api"
	"github.com/AhmetDumanli/Dakik-new/internal/clients"
	"github.com/AhmetDumanli/Dakik-new/internal/config"
	"github.com/AhmetDumanli/Dakik-new/internal/db"
	"github.com/AhmetDumanli/Dakik-new/internal/event"
	"github.com/AhmetDumanli/Dakik-new/internal/obs"
	redisclient "github.com/AhmetDumanli/Dakik-new/internal/redis"
)

const (
	serviceName = "event-service"
	defaultPort = "8081"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}

	logger := obs.NewLogger(serviceName, cfg.LogLevel, cfg.IsDev())
	port := cfg.Port(defaultPort)
	logger.WithFields(logrus.Fields{"env": cfg.Env, "http_port": port}).Info("event-service starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(rootCtx, obs.TracerOptions{
		ServiceName: serviceName,
		Version:     cfg.ServiceVersion,
		Env:         cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Fatalf("tracer init error: %v", err)
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.PostgresDSN, db.EventsMigrations, logger); err != nil {
			logger.Fatalf("migration error: %v", err)
		}
	}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.DefaultPoolOptions)
	cancelPg()
	if err != nil {
		logger.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.WithError(err).Warn("error closing redis")
		}
	}()
	logger.Info("connected to Redis")

	users, err := clients.NewClient("user-service", cfg.UserServiceURL, clients.NewHTTPClient(cfg.RPCTimeout))
	if err != nil {
		logger.Fatalf("user client error: %v", err)
	}
	users.Headers = api.PropagateHeaders

	svc := event.NewService(
		event.NewPgRepository(pgPool),
		clients.NewIdentityClient(users, cfg.RPCTimeout),
		redisclient.NewRedisEventLocker(rdb, cfg.LockTTL),
		logger,
	)

	health := api.NewHealthHandler(cfg.Env, cfg.ServiceVersion,
		api.Dependency{Name: "postgres", Critical: true, Ping: pgPool.Ping},
		api.Dependency{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	srv := &http.Server{
		Addr: ":" + port,
		Handler: api.NewEventRouter(api.EventRouterConfig{
			Service: svc,
			Health:  health,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("event-service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.WithError(err).Error("http server error")
		}
	}

	logger.Info("shutting down event-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown error")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracer shutdown error")
	}
}
