package location

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
)

const nmeaLog = `$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47
$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A
$GPGGA,123520,4807.038,N,01131.000,E,0,00,99.9,545.4,M,46.9,M,,*74
garbage line
$GPRMC,123521,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*76
$GPGGA,123522,4807.100,N,01131.100,E,1,04,20.0,545.4,M,46.9,M,,*73
$GPRMC,123522,A,4807.100,N,01131.100,E,022.4,084.4,230394,003.1,W*00
$GPRMC,123523,A,4807.200,N,01131.200,E,022.4,084.4,230394,003.1,W*68
$GPGSV,1,1,00*79
`

type collector struct {
	samples chan domain.GeoSample
	errs    chan error
}

func newCollector() *collector {
	return &collector{samples: make(chan domain.GeoSample, 16), errs: make(chan error, 16)}
}

func (c *collector) onSample(s domain.GeoSample) { c.samples <- s }
func (c *collector) onError(err error)          { c.errs <- err }

// drain waits for the end-of-stream error and returns everything delivered.
func (c *collector) drain(t *testing.T) ([]domain.GeoSample, []error) {
	t.Helper()
	var errs []error
	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-c.errs:
			errs = append(errs, err)
			if strings.Contains(err.Error(), "end of nmea stream") {
				var samples []domain.GeoSample
				for {
					select {
					case s := <-c.samples:
						samples = append(samples, s)
					default:
						return samples, errs
					}
				}
			}
		case <-deadline:
			t.Fatal("timed out waiting for end of stream")
		}
	}
}

func TestNMEASource_ParsesFixes(t *testing.T) {
	src := NewReaderSource(strings.NewReader(nmeaLog), 0, zerolog.Nop())
	c := newCollector()

	sub, err := src.Watch(c.onSample, c.onError, WatchOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sub.Cancel()

	samples, errs := c.drain(t)
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if math.Abs(samples[0].Location.Lat-48.1173) > 1e-4 {
		t.Errorf("expected lat ~48.1173, got %f", samples[0].Location.Lat)
	}
	if math.Abs(samples[0].Location.Lng-11.516667) > 1e-4 {
		t.Errorf("expected lng ~11.516667, got %f", samples[0].Location.Lng)
	}
	if samples[0].Accuracy != 0.9*uereMeters {
		t.Errorf("expected accuracy %f, got %f", 0.9*uereMeters, samples[0].Accuracy)
	}
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	for _, err := range errs {
		if !errors.Is(err, ErrPositionUnavailable) {
			t.Errorf("expected ErrPositionUnavailable, got %v", err)
		}
	}
}

func TestNMEASource_AccuracyLimit(t *testing.T) {
	tests := []struct {
		name string
		opts WatchOptions
		want int
	}{
		{"high accuracy only requests precision", WatchOptions{HighAccuracy: true}, 3},
		{"limit drops poor fixes", WatchOptions{HighAccuracy: true, MaxAccuracyMeters: 50}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewReaderSource(strings.NewReader(nmeaLog), 0, zerolog.Nop())
			c := newCollector()

			sub, err := src.Watch(c.onSample, c.onError, tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer sub.Cancel()

			samples, _ := c.drain(t)
			if len(samples) != tt.want {
				t.Fatalf("expected %d samples, got %d", tt.want, len(samples))
			}
		})
	}
}

func TestNMEASource_UnavailableFailsFast(t *testing.T) {
	src := NewFileSource("/nonexistent/gps.nmea", 0, zerolog.Nop())
	_, err := src.Watch(func(domain.GeoSample) {}, func(error) {}, WatchOptions{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
