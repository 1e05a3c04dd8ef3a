package config

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NewRabbitMQ dials the alarm event broker. The connection is named after the
// MQTT client id so it can be told apart in the management UI.
func NewRabbitMQ(cfg *Config) (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(cfg.MQTTClientID)

	conn, err := amqp.DialConfig(cfg.RabbitMQURL, amqp.Config{
		Heartbeat:  10 * time.Second,
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	return conn, nil
}
