package subscriber

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/location"
	"github.com/vivekgangdhar11/wakeme/module/core/service"
)

const topicPattern = "wakeme/trip/+/location"

type trackingService interface {
	Feed(tripID string, sample domain.GeoSample) error
	FeedError(tripID string, err error) error
}

// locationMessage is a device position report. A report carrying an error
// code has no usable position.
type locationMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"`
	Error     string  `json:"error,omitempty"`
}

var deviceErrors = map[string]error{
	"permission_denied":    location.ErrPermissionDenied,
	"position_unavailable": location.ErrPositionUnavailable,
	"timeout":              location.ErrTimeout,
}

type LocationSubscriber struct {
	client      mqtt.Client
	trackingSvc trackingService
	logger      zerolog.Logger
}

func NewLocationSubscriber(client mqtt.Client, trackingSvc trackingService, logger zerolog.Logger) *LocationSubscriber {
	return &LocationSubscriber{
		client:      client,
		trackingSvc: trackingSvc,
		logger:      logger.With().Str("component", "location_subscriber").Logger(),
	}
}

func (s *LocationSubscriber) Start() error {
	token := s.client.Subscribe(topicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *LocationSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	tripID, err := tripIDFromTopic(msg.Topic())
	if err != nil {
		s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("unexpected topic")
		return
	}
	log := s.logger.With().Str("trip_id", tripID).Logger()

	var raw locationMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Warn().Err(err).Msg("invalid location message")
		return
	}

	if raw.Error != "" {
		deviceErr, ok := deviceErrors[raw.Error]
		if !ok {
			log.Warn().Str("error", raw.Error).Msg("unknown device error code")
			return
		}
		s.relay(log, s.trackingSvc.FeedError(tripID, deviceErr))
		return
	}

	if err := validateLocationMessage(&raw); err != nil {
		log.Warn().Err(err).Msg("validation error")
		return
	}

	sample := domain.GeoSample{
		Location:  domain.Coordinate{Lat: raw.Latitude, Lng: raw.Longitude},
		Accuracy:  raw.Accuracy,
		Timestamp: time.Unix(raw.Timestamp, 0),
	}
	s.relay(log, s.trackingSvc.Feed(tripID, sample))
}

func (s *LocationSubscriber) relay(log zerolog.Logger, err error) {
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNotTracking):
		log.Debug().Msg("no tracking session, dropping report")
	default:
		log.Error().Err(err).Msg("failed to relay location report")
	}
}

func tripIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "wakeme" || parts[1] != "trip" || parts[3] != "location" || parts[2] == "" {
		return "", fmt.Errorf("topic %q does not match %s", topic, topicPattern)
	}
	return parts[2], nil
}

func validateLocationMessage(msg *locationMessage) error {
	if err := (domain.Coordinate{Lat: msg.Latitude, Lng: msg.Longitude}).Validate(); err != nil {
		return err
	}
	if msg.Accuracy < 0 || math.IsNaN(msg.Accuracy) {
		return fmt.Errorf("accuracy: must not be negative")
	}
	if msg.Timestamp <= 0 {
		return fmt.Errorf("timestamp: must be positive")
	}
	return nil
}
