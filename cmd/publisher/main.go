package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/vivekgangdhar11/wakeme/config"
	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/geo"
	"github.com/vivekgangdhar11/wakeme/module/core/signal"
)

// Options describe a simulated device travelling in a straight line from
// start to destination.
type Options struct {
	Broker   string        `short:"b" long:"broker" env:"MQTT_BROKER" description:"MQTT broker" default:"tcp://localhost:1883"`
	TripID   string        `short:"t" long:"trip" required:"true" description:"Trip to report positions for"`
	StartLat float64       `long:"start-lat" required:"true" description:"Start latitude"`
	StartLng float64       `long:"start-lng" required:"true" description:"Start longitude"`
	DestLat  float64       `long:"dest-lat" required:"true" description:"Destination latitude"`
	DestLng  float64       `long:"dest-lng" required:"true" description:"Destination longitude"`
	Speed    float64       `long:"speed" description:"Speed in meters per second" default:"15"`
	Interval time.Duration `short:"i" long:"interval" description:"Reporting interval" default:"2s"`
	Jitter   float64       `long:"jitter" description:"Random position error in meters" default:"8"`
}

type locationMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"`
}

func main() {
	var opts Options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logger, _ := config.NewLogger("info", "console", os.Stderr)

	client := mqtt.NewClient(mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID("wakeme-simulator-" + opts.TripID))
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	start := domain.Coordinate{Lat: opts.StartLat, Lng: opts.StartLng}
	dest := domain.Coordinate{Lat: opts.DestLat, Lng: opts.DestLng}
	total := geo.Distance(start, dest)
	topic := fmt.Sprintf("wakeme/trip/%s/location", opts.TripID)

	// Play the device side of the alarm by logging the commands the server sends.
	alarmTopic := signal.TopicFor(opts.TripID)
	if token := client.Subscribe(alarmTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		logger.Warn().RawJSON("command", msg.Payload()).Msg("alarm command received")
	}); token.Wait() && token.Error() != nil {
		logger.Fatal().Err(token.Error()).Msg("subscribe alarm topic")
	}

	logger.Info().Str("topic", topic).Str("distance", geo.FormatDistance(total)).Msg("simulating trip")

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	began := time.Now()
	for now := range ticker.C {
		travelled := opts.Speed * now.Sub(began).Seconds()
		progress := 1.0
		if total > 0 {
			progress = math.Min(travelled/total, 1)
		}
		pos := jitter(interpolate(start, dest, progress), opts.Jitter)

		payload, _ := json.Marshal(locationMessage{
			Latitude:  pos.Lat,
			Longitude: pos.Lng,
			Accuracy:  opts.Jitter,
			Timestamp: now.Unix(),
		})
		token := client.Publish(topic, 1, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			logger.Error().Err(err).Msg("publish")
			continue
		}

		logEvent(logger, pos, dest, progress)
	}
}

func interpolate(a, b domain.Coordinate, f float64) domain.Coordinate {
	return domain.Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lng: a.Lng + (b.Lng-a.Lng)*f,
	}
}

func jitter(c domain.Coordinate, meters float64) domain.Coordinate {
	if meters <= 0 {
		return c
	}
	const metersPerDegree = 111_195.0
	dLat := (rand.Float64()*2 - 1) * meters / metersPerDegree
	dLng := (rand.Float64()*2 - 1) * meters / (metersPerDegree * math.Max(math.Cos(c.Lat*math.Pi/180), 0.01))
	return domain.Coordinate{Lat: c.Lat + dLat, Lng: c.Lng + dLng}
}

func logEvent(logger zerolog.Logger, pos, dest domain.Coordinate, progress float64) {
	logger.Info().
		Float64("lat", pos.Lat).
		Float64("lng", pos.Lng).
		Str("remaining", geo.FormatDistance(geo.Distance(pos, dest))).
		Int("progress_pct", int(progress*100)).
		Msg("published")
}
