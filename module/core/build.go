package core

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	handler "github.com/vivekgangdhar11/wakeme/module/core/internal/handler/http"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/handler/subscriber"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/repository/database"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/repository/database/memory"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/repository/database/postgres"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/repository/publisher"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/repository/publisher/rabbitmq"
	"github.com/vivekgangdhar11/wakeme/module/core/service"
	"github.com/vivekgangdhar11/wakeme/module/core/signal"
)

type Options struct {
	Tracking            service.TrackingSettings
	DefaultRadiusMeters float64
	Logger              zerolog.Logger
}

type Module struct {
	TripSvc     *service.TripService
	TrackingSvc *service.TrackingService
	handler     *handler.TripHandler
	subscriber  *subscriber.LocationSubscriber
}

// Build wires the trip module. A nil db keeps trips in memory and a nil
// amqpConn disables alarm event publishing.
func Build(ctx context.Context, db *sqlx.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client, opts Options) (*Module, error) {
	var tripRepo database.TripRepository
	if db != nil {
		pg := postgres.NewTripRepo(db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		tripRepo = pg
	} else {
		tripRepo = memory.NewTripRepo()
	}

	var events publisher.AlarmPublisher
	if amqpConn != nil {
		alarmPub, err := rabbitmq.NewAlarmPublisher(amqpConn)
		if err != nil {
			return nil, fmt.Errorf("alarm publisher: %w", err)
		}
		events = alarmPub
	}

	signals := func(tripID string) service.Signal {
		return signal.NewDeviceSignal(mqttClient, tripID)
	}

	tripSvc := service.NewTripService(tripRepo, service.WithDefaultRadius(opts.DefaultRadiusMeters))
	trackingSvc := service.NewTrackingService(tripSvc, opts.Tracking, signals, events, opts.Logger)

	h := handler.NewTripHandler(tripSvc, trackingSvc)
	sub := subscriber.NewLocationSubscriber(mqttClient, trackingSvc, opts.Logger)

	return &Module{
		TripSvc:     tripSvc,
		TrackingSvc: trackingSvc,
		handler:     h,
		subscriber:  sub,
	}, nil
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.handler.Register(r)
}

func (m *Module) StartSubscribers() error {
	return m.subscriber.Start()
}

// Shutdown closes every tracking session without ending its trip.
func (m *Module) Shutdown() {
	m.TrackingSvc.Shutdown()
}
