// Package signal provides alarm outputs: a remote device reached over MQTT
// and the local terminal.
package signal

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/vivekgangdhar11/wakeme/module/core/location"
)

const publishTimeout = 5 * time.Second

// TopicFor is the topic a trip's device listens on for alarm commands.
func TopicFor(tripID string) string {
	return fmt.Sprintf("wakeme/trip/%s/alarm", tripID)
}

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type command struct {
	Command   string  `json:"command"`
	Volume    float64 `json:"volume,omitempty"`
	Loop      bool    `json:"loop,omitempty"`
	PatternMs []int64 `json:"pattern_ms,omitempty"`
	Title     string  `json:"title,omitempty"`
	Body      string  `json:"body,omitempty"`

	HighAccuracy bool  `json:"high_accuracy,omitempty"`
	MaxAgeMs     int64 `json:"max_age_ms,omitempty"`
	TimeoutMs    int64 `json:"timeout_ms,omitempty"`
}

// DeviceSignal forwards alarm commands to the device that reports a trip's
// position. A command the broker does not acknowledge in time is an error.
type DeviceSignal struct {
	client mqttPublisher
	topic  string
}

func NewDeviceSignal(client mqttPublisher, tripID string) *DeviceSignal {
	return &DeviceSignal{client: client, topic: TopicFor(tripID)}
}

func (d *DeviceSignal) Start(volume float64, loop bool) error {
	return d.send(command{Command: "start", Volume: volume, Loop: loop})
}

func (d *DeviceSignal) Stop() error {
	return d.send(command{Command: "stop"})
}

func (d *DeviceSignal) Vibrate(pattern []time.Duration) error {
	ms := make([]int64, len(pattern))
	for i, p := range pattern {
		ms[i] = p.Milliseconds()
	}
	return d.send(command{Command: "vibrate", PatternMs: ms})
}

func (d *DeviceSignal) Notify(title, body string) error {
	return d.send(command{Command: "notify", Title: title, Body: body})
}

// RequestWatch tells the device how to sample its position for the trip.
func (d *DeviceSignal) RequestWatch(opts location.WatchOptions) error {
	return d.send(command{
		Command:      "watch",
		HighAccuracy: opts.HighAccuracy,
		MaxAgeMs:     opts.MaxSampleAge.Milliseconds(),
		TimeoutMs:    opts.Timeout.Milliseconds(),
	})
}

func (d *DeviceSignal) send(cmd command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s command: %w", cmd.Command, err)
	}
	token := d.client.Publish(d.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%s command: publish timed out", cmd.Command)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s command: %w", cmd.Command, err)
	}
	return nil
}
