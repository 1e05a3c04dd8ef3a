package location

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog"
	"github.com/tarm/serial"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
)

// uereMeters converts HDOP into an approximate horizontal error.
const uereMeters = 5

// NMEASource reads NMEA 0183 sentences ($xxGGA and $xxRMC) from a GPS receiver
// or a recorded log and turns position fixes into samples.
type NMEASource struct {
	open          func() (io.ReadCloser, error)
	pace          time.Duration
	useDeviceTime bool
	logger        zerolog.Logger
	now           func() time.Time
}

// NewSerialSource reads from a GPS receiver attached to a serial port.
func NewSerialSource(port string, baud int, logger zerolog.Logger) *NMEASource {
	return &NMEASource{
		open: func() (io.ReadCloser, error) {
			return serial.OpenPort(&serial.Config{Name: port, Baud: baud})
		},
		useDeviceTime: true,
		logger:        logger,
		now:           time.Now,
	}
}

// NewFileSource replays a recorded NMEA log, waiting pace between fixes.
// Replayed samples are stamped with the current time.
func NewFileSource(path string, pace time.Duration, logger zerolog.Logger) *NMEASource {
	return &NMEASource{
		open:   func() (io.ReadCloser, error) { return os.Open(path) },
		pace:   pace,
		logger: logger,
		now:    time.Now,
	}
}

func NewReaderSource(r io.Reader, pace time.Duration, logger zerolog.Logger) *NMEASource {
	return &NMEASource{
		open:   func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		pace:   pace,
		logger: logger,
		now:    time.Now,
	}
}

func (s *NMEASource) Watch(onSample func(domain.GeoSample), onError func(error), opts WatchOptions) (Subscription, error) {
	rc, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	done := make(chan struct{})
	var closed atomic.Bool
	report := func(err error) {
		if !closed.Load() {
			onError(err)
		}
	}
	dog := newWatchdog(opts.Timeout, report)

	go s.read(rc, done, opts, dog, func(sample domain.GeoSample) {
		if !closed.Load() {
			onSample(sample)
		}
	}, report)

	return &cancelFunc{fn: func() {
		closed.Store(true)
		close(done)
		dog.stop()
		if err := rc.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close nmea source")
		}
	}}, nil
}

func (s *NMEASource) read(r io.Reader, done <-chan struct{}, opts WatchOptions, dog *watchdog,
	onSample func(domain.GeoSample), onError func(error)) {
	var last nmea.Time
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-done:
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			s.logger.Debug().Err(err).Str("line", line).Msg("skip nmea sentence")
			continue
		}

		sample, fixTime, err := s.fix(sentence)
		if err != nil {
			onError(err)
			continue
		}
		if fixTime == nil || (fixTime.Valid && *fixTime == last) {
			continue
		}
		last = *fixTime

		if !opts.admit(sample, s.now()) {
			continue
		}
		dog.kick()
		onSample(sample)

		if s.pace > 0 {
			select {
			case <-time.After(s.pace):
			case <-done:
				return
			}
		}
	}

	select {
	case <-done:
		return
	default:
	}
	if err := scanner.Err(); err != nil {
		onError(fmt.Errorf("%w: %v", ErrPositionUnavailable, err))
		return
	}
	onError(fmt.Errorf("%w: end of nmea stream", ErrPositionUnavailable))
}

// fix extracts a sample from position sentences. A nil time means the
// sentence carries no position and is ignored.
func (s *NMEASource) fix(sentence nmea.Sentence) (domain.GeoSample, *nmea.Time, error) {
	switch m := sentence.(type) {
	case nmea.GGA:
		if m.FixQuality == nmea.Invalid {
			return domain.GeoSample{}, nil, ErrPositionUnavailable
		}
		return domain.GeoSample{
			Location:  domain.Coordinate{Lat: m.Latitude, Lng: m.Longitude},
			Accuracy:  m.HDOP * uereMeters,
			Timestamp: s.now(),
		}, &m.Time, nil
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return domain.GeoSample{}, nil, ErrPositionUnavailable
		}
		ts := s.now()
		if s.useDeviceTime && m.Date.Valid && m.Time.Valid {
			ts = time.Date(2000+m.Date.YY, time.Month(m.Date.MM), m.Date.DD,
				m.Time.Hour, m.Time.Minute, m.Time.Second, m.Time.Millisecond*int(time.Millisecond), time.UTC)
		}
		return domain.GeoSample{
			Location:  domain.Coordinate{Lat: m.Latitude, Lng: m.Longitude},
			Timestamp: ts,
		}, &m.Time, nil
	default:
		return domain.GeoSample{}, nil, nil
	}
}
