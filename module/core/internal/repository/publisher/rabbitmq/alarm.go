package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/repository/publisher"
)

var _ publisher.AlarmPublisher = (*AlarmPublisher)(nil)

const (
	ExchangeName = "wakeme.events"
	QueueName    = "alarm_events"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AlarmPublisher struct {
	ch channel
}

func NewAlarmPublisher(conn *amqp.Connection) (*AlarmPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(QueueName, "", ExchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &AlarmPublisher{ch: ch}, nil
}

type alertMessage struct {
	TripID         string                `json:"trip_id"`
	Event          domain.AlarmEventType `json:"event"`
	AlarmState     string                `json:"alarm_state"`
	Location       *alertLocation        `json:"location,omitempty"`
	DistanceMeters float64               `json:"distance_meters"`
	Timestamp      int64                 `json:"timestamp"`
}

type alertLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p *AlarmPublisher) PublishEvent(ctx context.Context, alert *domain.AlarmEvent) error {
	msg := alertMessage{
		TripID:         alert.TripID,
		Event:          alert.Event,
		AlarmState:     alert.State.String(),
		DistanceMeters: alert.DistanceMeters,
		Timestamp:      alert.Timestamp,
	}
	if alert.Location != nil {
		msg.Location = &alertLocation{
			Latitude:  alert.Location.Lat,
			Longitude: alert.Location.Lng,
		}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	return p.ch.PublishWithContext(ctx, ExchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
