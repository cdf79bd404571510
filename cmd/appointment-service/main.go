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
	"github.com/AhmetDumanli/Dakik-new/internal/appointment"
	"github.com/AhmetDumanli/Dakik-new/internal/clients"
	"github.com/AhmetDumanli/Dakik-new/internal/config"
	"github.com/AhmetDumanli/Dakik-new/internal/db"
	"github.com/AhmetDumanli/Dakik-new/internal/mq"
	"github.com/AhmetDumanli/Dakik-new/internal/obs"
)

const (
	serviceName = "appointment-service"
	defaultPort = "8080"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}

	logger := obs.NewLogger(serviceName, cfg.LogLevel, cfg.IsDev())
	port := cfg.Port(defaultPort)
	logger.WithFields(logrus.Fields{"env": cfg.Env, "http_port": port}).Info("appointment-service starting up")

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
		if err := db.RunMigrations(cfg.PostgresDSN, db.AppointmentsMigrations, logger); err != nil {
			logger.Fatalf("migration error: %v", err)
		}
	}

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.DefaultPoolOptions)
	cancelPg()
	if err != nil {
		logger.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	httpClient := clients.NewHTTPClient(cfg.RPCTimeout)

	eventsBase, err := clients.NewClient("event-service", cfg.EventServiceURL, httpClient)
	if err != nil {
		logger.Fatalf("event client error: %v", err)
	}
	eventsBase.Headers = api.PropagateHeaders
	events := clients.NewEventClient(eventsBase, cfg.RPCTimeout)

	usersBase, err := clients.NewClient("user-service", cfg.UserServiceURL, httpClient)
	if err != nil {
		logger.Fatalf("user client error: %v", err)
	}
	usersBase.Headers = api.PropagateHeaders

	var notifier appointment.Notifier = mq.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub, err := mq.NewPublisher(cfg.RabbitURL, cfg.AppointmentExchange, serviceName)
		if err != nil {
			logger.Fatalf("rabbitmq connection error: %v", err)
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logger.WithError(err).Warn("error closing rabbitmq publisher")
			}
		}()
		notifier = pub
		logger.WithField("exchange", cfg.AppointmentExchange).Info("connected to RabbitMQ")
	} else {
		logger.Info("RABBIT_URL not set, notifications disabled")
	}

	svc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		events,
		clients.NewIdentityClient(usersBase, cfg.RPCTimeout),
		notifier,
		logger,
		cfg.RPCTimeout,
	)

	health := api.NewHealthHandler(cfg.Env, cfg.ServiceVersion,
		api.Dependency{Name: "postgres", Critical: true, Ping: pgPool.Ping},
		api.Dependency{Name: "event-service", Ping: events.Ping},
	)

	srv := &http.Server{
		Addr: ":" + port,
		Handler: api.NewAppointmentRouter(api.AppointmentRouterConfig{
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
		logger.Infof("appointment-service listening on %s", srv.Addr)
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

	logger.Info("shutting down appointment-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown error")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracer shutdown error")
	}
}
