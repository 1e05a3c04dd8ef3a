package subscriber

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/location"
	"github.com/vivekgangdhar11/wakeme/module/core/service"
)

type mockTrackingSvc struct {
	feedFn      func(tripID string, sample domain.GeoSample) error
	feedErrorFn func(tripID string, err error) error
}

func (m *mockTrackingSvc) Feed(tripID string, sample domain.GeoSample) error {
	return m.feedFn(tripID, sample)
}

func (m *mockTrackingSvc) FeedError(tripID string, err error) error {
	return m.feedErrorFn(tripID, err)
}

type fakeMQTTMessage struct {
	topic   string
	payload []byte
}

func (f *fakeMQTTMessage) Duplicate() bool   { return false }
func (f *fakeMQTTMessage) Qos() byte         { return 0 }
func (f *fakeMQTTMessage) Retained() bool    { return false }
func (f *fakeMQTTMessage) Topic() string     { return f.topic }
func (f *fakeMQTTMessage) MessageID() uint16 { return 0 }
func (f *fakeMQTTMessage) Payload() []byte   { return f.payload }
func (f *fakeMQTTMessage) Ack()              {}

func newSubscriber(svc trackingService) *LocationSubscriber {
	return NewLocationSubscriber(nil, svc, zerolog.Nop())
}

func message(payload any) *fakeMQTTMessage {
	b, _ := json.Marshal(payload)
	return &fakeMQTTMessage{topic: "wakeme/trip/trip-1/location", payload: b}
}

func TestHandleMessage_Success(t *testing.T) {
	var gotID string
	var got *domain.GeoSample

	svc := &mockTrackingSvc{
		feedFn: func(tripID string, sample domain.GeoSample) error {
			gotID = tripID
			got = &sample
			return nil
		},
	}

	newSubscriber(svc).handleMessage(nil, message(locationMessage{
		Latitude:  51.5074,
		Longitude: -0.1278,
		Accuracy:  12,
		Timestamp: 1715003456,
	}))

	if got == nil {
		t.Fatal("expected Feed to be called")
	}
	if gotID != "trip-1" {
		t.Errorf("expected trip-1, got %s", gotID)
	}
	if got.Location.Lat != 51.5074 || got.Location.Lng != -0.1278 {
		t.Errorf("unexpected location: %+v", got.Location)
	}
	if got.Accuracy != 12 {
		t.Errorf("expected accuracy 12, got %v", got.Accuracy)
	}
	if !got.Timestamp.Equal(time.Unix(1715003456, 0)) {
		t.Errorf("unexpected timestamp: %v", got.Timestamp)
	}
}

func TestHandleMessage_DeviceError(t *testing.T) {
	var got error
	svc := &mockTrackingSvc{
		feedFn: func(string, domain.GeoSample) error {
			t.Fatal("Feed should not be called")
			return nil
		},
		feedErrorFn: func(_ string, err error) error {
			got = err
			return nil
		},
	}

	newSubscriber(svc).handleMessage(nil, message(map[string]any{"error": "permission_denied"}))

	if got != location.ErrPermissionDenied {
		t.Fatalf("expected ErrPermissionDenied, got %v", got)
	}
}

func TestHandleMessage_Dropped(t *testing.T) {
	svc := &mockTrackingSvc{
		feedFn: func(string, domain.GeoSample) error {
			t.Fatal("Feed should not be called")
			return nil
		},
		feedErrorFn: func(string, error) error {
			t.Fatal("FeedError should not be called")
			return nil
		},
	}
	sub := newSubscriber(svc)

	tests := []struct {
		name string
		msg  *fakeMQTTMessage
	}{
		{"invalid json", &fakeMQTTMessage{topic: "wakeme/trip/trip-1/location", payload: []byte("invalid")}},
		{"latitude out of range", message(locationMessage{Latitude: 91, Longitude: 0, Timestamp: 1715003456})},
		{"longitude out of range", message(locationMessage{Latitude: 0, Longitude: 181, Timestamp: 1715003456})},
		{"missing timestamp", message(locationMessage{Latitude: 1, Longitude: 1})},
		{"negative accuracy", message(locationMessage{Latitude: 1, Longitude: 1, Accuracy: -1, Timestamp: 1715003456})},
		{"unknown error code", message(map[string]any{"error": "gps_on_fire"})},
		{"foreign topic", &fakeMQTTMessage{topic: "fleet/vehicle/x/location", payload: []byte(`{}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub.handleMessage(nil, tt.msg)
		})
	}
}

func TestHandleMessage_NotTrackingIsIgnored(t *testing.T) {
	calls := 0
	svc := &mockTrackingSvc{
		feedFn: func(string, domain.GeoSample) error {
			calls++
			return service.ErrNotTracking
		},
	}

	newSubscriber(svc).handleMessage(nil, message(locationMessage{Latitude: 1, Longitude: 1, Timestamp: 1715003456}))
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestTripIDFromTopic(t *testing.T) {
	id, err := tripIDFromTopic("wakeme/trip/abc-123/location")
	if err != nil || id != "abc-123" {
		t.Fatalf("expected abc-123, got %q (%v)", id, err)
	}
	for _, topic := range []string{"wakeme/trip//location", "wakeme/trip/a/alarm", "/wakeme/trip/a/location"} {
		if _, err := tripIDFromTopic(topic); err == nil {
			t.Errorf("%s: expected error", topic)
		}
	}
}
