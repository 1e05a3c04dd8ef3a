package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vivekgangdhar11/wakeme/config"
	"github.com/vivekgangdhar11/wakeme/module/core"
)

func main() {
	cfg := config.Load()

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		logger = config.DefaultLogger()
		logger.Fatal().Err(err).Msg("logger")
	}

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("settings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sqlx.DB
	if cfg.PostgresDSN != "" {
		db, err = config.NewPostgres(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer func() { _ = db.Close() }()
	} else {
		logger.Warn().Msg("POSTGRES_DSN not set, trips are kept in memory")
	}

	var amqpConn *amqp.Connection
	if cfg.RabbitMQURL != "" {
		amqpConn, err = config.NewRabbitMQ(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("rabbitmq")
		}
		defer func() { _ = amqpConn.Close() }()
	}

	mqttClient, err := config.NewMQTT(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("mqtt")
	}
	defer mqttClient.Disconnect(250)

	coreModule, err := core.Build(ctx, db, amqpConn, mqttClient, core.Options{
		Tracking:            settings.TrackerSettings(),
		DefaultRadiusMeters: settings.DefaultRadiusMeters,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("core module")
	}
	defer coreModule.Shutdown()

	if err := coreModule.StartSubscribers(); err != nil {
		logger.Fatal().Err(err).Msg("start subscribers")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), config.RequestLogger(logger), config.CORS())

	api := r.Group("/api")
	config.NewHealthChecker(db, amqpConn, mqttClient).Register(api)
	coreModule.RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
}
