package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/geo"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/repository/publisher"
	"github.com/vivekgangdhar11/wakeme/module/core/location"
)

const saveQueueSize = 64

// PointStore is the persistence gateway a tracker writes through.
type PointStore interface {
	SavePoint(ctx context.Context, tripID string, sample domain.GeoSample) error
	EndTrip(ctx context.Context, tripID string) error
}

// WatchRequester is implemented by signals whose device also reports the
// trip's position. The tracker forwards its watch options on start.
type WatchRequester interface {
	RequestWatch(opts location.WatchOptions) error
}

type TrackingSettings struct {
	Watch           location.WatchOptions
	PersistInterval time.Duration
	SaveTimeout     time.Duration
	ExitFactor      float64
	Alarm           AlarmSettings
}

func DefaultTrackingSettings() TrackingSettings {
	return TrackingSettings{
		Watch: location.WatchOptions{
			HighAccuracy: true,
			MaxSampleAge: 10 * time.Second,
			Timeout:      15 * time.Second,
		},
		PersistInterval: 30 * time.Second,
		SaveTimeout:     10 * time.Second,
		ExitFactor:      1,
		Alarm: AlarmSettings{
			Volume:         0.8,
			Loop:           true,
			Vibrate:        true,
			VibratePattern: []time.Duration{500 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond},
			Notify:         true,
			NotifyTitle:    "Wake up!",
			NotifyBody:     "You are approaching your destination.",
		},
	}
}

type TrackerStatus struct {
	TripID         string                  `json:"tripId"`
	AlarmState     domain.AlarmState       `json:"alarmState"`
	Containment    domain.ContainmentState `json:"containment"`
	DistanceMeters *float64                `json:"distanceMeters,omitempty"`
	LastSample     *domain.GeoSample       `json:"lastSample,omitempty"`
	Samples        int                     `json:"samples"`
	Locating       bool                    `json:"locating"`
	StartedAt      time.Time               `json:"startedAt"`
	Elapsed        time.Duration           `json:"-"`
	ElapsedSeconds int64                   `json:"elapsedSeconds"`
	LocationError  string                  `json:"locationError,omitempty"`
	SignalError    string                  `json:"signalError,omitempty"`
	Ended          bool                    `json:"ended"`
}

// String renders the status as a single display line, e.g.
// "00:12:05  1.2 km  alarm idle".
func (s TrackerStatus) String() string {
	secs := int64(s.Elapsed / time.Second)
	line := fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)

	switch {
	case s.DistanceMeters != nil:
		line += "  " + geo.FormatDistance(*s.DistanceMeters)
	case s.Locating:
		line += "  locating..."
	default:
		line += "  no fix"
	}
	line += "  alarm " + s.AlarmState.String()
	if s.LocationError != "" {
		line += "  (" + s.LocationError + ")"
	}
	if s.SignalError != "" {
		line += "  [signal: " + s.SignalError + "]"
	}
	return line
}

// Tracker is the sampling loop of one active trip. Each sample is evaluated,
// fed to the alarm machine and checked against the persistence policy as a
// single unit; saves run asynchronously and never hold up evaluation. Alarm
// signal calls run in order on their own queue, outside the tracker lock.
type Tracker struct {
	mu        sync.Mutex
	tripID    string
	fence     domain.Geofence
	settings  TrackingSettings
	source    location.Source
	store     PointStore
	events    publisher.AlarmPublisher
	evaluator *Evaluator
	alarm     *AlarmMachine
	pool      *WorkerPool
	signals   *SerialQueue
	logger    zerolog.Logger
	now       func() time.Time

	sub           location.Subscription
	startedAt     time.Time
	nextPersist   time.Time
	containment   domain.ContainmentState
	lastSample    *domain.GeoSample
	lastPersisted bool
	lastDistance  float64
	lastErr       error
	samples       int
	ended         bool
}

type TrackerOption func(*Tracker)

func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func WithEventPublisher(p publisher.AlarmPublisher) TrackerOption {
	return func(t *Tracker) { t.events = p }
}

func NewTracker(tripID string, fence domain.Geofence, settings TrackingSettings, source location.Source,
	store PointStore, signal Signal, logger zerolog.Logger, opts ...TrackerOption) *Tracker {
	if settings.PersistInterval <= 0 {
		settings.PersistInterval = 30 * time.Second
	}
	if settings.SaveTimeout <= 0 {
		settings.SaveTimeout = 10 * time.Second
	}
	logger = logger.With().Str("trip_id", tripID).Logger()

	t := &Tracker{
		tripID:    tripID,
		fence:     fence,
		settings:  settings,
		source:    source,
		store:     store,
		evaluator: NewEvaluator(settings.ExitFactor),
		alarm:     NewAlarmMachine(signal, settings.Alarm, logger),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start subscribes to the location source. It fails fast when the source
// has no location capability.
func (t *Tracker) Start() error {
	pool := NewWorkerPool(1, saveQueueSize)
	signals := NewSerialQueue()
	t.mu.Lock()
	t.startedAt = t.now()
	t.nextPersist = t.startedAt.Add(t.settings.PersistInterval)
	t.pool = pool
	t.signals = signals
	t.alarm.setRunner(signals)
	if req, ok := t.alarm.signal.(WatchRequester); ok {
		opts := t.settings.Watch
		signals.Go(func() {
			if err := req.RequestWatch(opts); err != nil {
				t.logger.Warn().Err(err).Msg("failed to send watch options to device")
			}
		})
	}
	t.mu.Unlock()

	sub, err := t.source.Watch(t.handleSample, t.handleError, t.settings.Watch)
	if err != nil {
		t.mu.Lock()
		t.pool = nil
		t.signals = nil
		t.alarm.setRunner(inlineRunner{})
		t.mu.Unlock()
		pool.Shutdown()
		signals.Close()
		t.logger.Error().Err(err).Msg("location source unavailable")
		return err
	}

	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		sub.Cancel()
		return nil
	}
	t.sub = sub
	t.mu.Unlock()

	t.logger.Info().
		Float64("radius_m", t.fence.RadiusMeters).
		Float64("dest_lat", t.fence.Center.Lat).
		Float64("dest_lng", t.fence.Center.Lng).
		Dur("persist_interval", t.settings.PersistInterval).
		Msg("tracking started")
	return nil
}

func (t *Tracker) handleSample(s domain.GeoSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		t.logger.Debug().Msg("ignoring sample after trip end")
		return
	}

	ev := t.evaluator.Evaluate(s, t.fence, t.containment)
	t.containment = ev.State
	t.lastDistance = ev.DistanceMeters
	t.lastSample = &s
	t.lastErr = nil
	t.samples++

	persist := false
	if event, ok := t.alarm.Observe(ev); ok {
		t.publish(event)
		if event == domain.AlarmTriggeredEvent {
			t.logger.Info().Float64("distance_m", ev.DistanceMeters).Msg("arrived, alarm triggered")
			persist = true
		}
	}

	if now := t.now(); !now.Before(t.nextPersist) {
		persist = true
		for !t.nextPersist.After(now) {
			t.nextPersist = t.nextPersist.Add(t.settings.PersistInterval)
		}
	}

	t.lastPersisted = persist && t.save(s)
}

func (t *Tracker) handleError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return
	}
	t.lastErr = err
	t.logger.Warn().Err(err).Msg("location source error")
}

// StopAlarm acknowledges a triggered alarm.
func (t *Tracker) StopAlarm() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended || !t.alarm.Stop() {
		return false
	}
	t.publish(domain.AlarmStoppedEvent)
	return true
}

// RetryAlarm re-attempts starting a signal that failed to start. The attempt
// runs without holding the tracker lock.
func (t *Tracker) RetryAlarm() error {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return nil
	}
	retry := t.alarm.retry()
	t.mu.Unlock()

	if retry == nil {
		return nil
	}
	return retry()
}

func (t *Tracker) Status() TrackerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := TrackerStatus{
		TripID:      t.tripID,
		AlarmState:  t.alarm.State(),
		Containment: t.containment,
		Samples:     t.samples,
		Locating:    t.samples == 0 && t.lastErr == nil,
		StartedAt:   t.startedAt,
		Ended:       t.ended,
	}
	if !t.startedAt.IsZero() {
		st.Elapsed = t.now().Sub(t.startedAt)
		st.ElapsedSeconds = int64(st.Elapsed / time.Second)
	}
	if t.lastSample != nil {
		sample := *t.lastSample
		distance := t.lastDistance
		st.LastSample = &sample
		st.DistanceMeters = &distance
	}
	if t.lastErr != nil {
		st.LocationError = t.lastErr.Error()
	}
	if err := t.alarm.SignalError(); err != nil {
		st.SignalError = err.Error()
	}
	return st
}

// End finishes the trip: the location subscription is released, the alarm
// silenced, the last unsaved sample persisted and the trip closed in the
// store. Calling End or Close again is a no-op.
func (t *Tracker) End(ctx context.Context) error {
	final, ok := t.shutdown()
	if !ok {
		return nil
	}

	if final != nil {
		if err := t.store.SavePoint(ctx, t.tripID, *final); err != nil {
			t.logger.Error().Err(err).Msg("failed to save final location point")
		}
	}
	if err := t.store.EndTrip(ctx, t.tripID); err != nil {
		t.logger.Error().Err(err).Msg("failed to end trip")
		return err
	}
	t.logger.Info().Msg("trip ended")
	return nil
}

// Close tears the tracker down without ending the trip, e.g. when the host
// goes away.
func (t *Tracker) Close() {
	if _, ok := t.shutdown(); ok {
		t.logger.Info().Msg("tracking closed")
	}
}

// shutdown runs the cleanup shared by End and Close exactly once and returns
// the last sample that has not been persisted yet.
func (t *Tracker) shutdown() (*domain.GeoSample, bool) {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return nil, false
	}
	t.ended = true
	if t.sub != nil {
		t.sub.Cancel()
	}
	t.alarm.Terminate()
	t.publish(domain.TripEndedEvent)

	var final *domain.GeoSample
	if t.lastSample != nil && !t.lastPersisted {
		sample := *t.lastSample
		final = &sample
	}
	pool, signals := t.pool, t.signals
	t.mu.Unlock()

	if signals != nil {
		signals.Close()
	}
	if pool != nil {
		pool.Shutdown()
	}
	return final, true
}

// save queues a point for persistence and reports whether it was queued.
// Must be called with t.mu held.
func (t *Tracker) save(s domain.GeoSample) bool {
	if t.pool == nil {
		return false
	}
	ok := t.pool.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.settings.SaveTimeout)
		defer cancel()
		if err := t.store.SavePoint(ctx, t.tripID, s); err != nil {
			t.logger.Error().Err(err).Msg("failed to save location point")
		}
	})
	if !ok {
		t.logger.Warn().Msg("save queue full, dropping location point")
	}
	return ok
}

// publish emits an alarm event. Must be called with t.mu held.
func (t *Tracker) publish(event domain.AlarmEventType) {
	if t.events == nil || t.pool == nil {
		return
	}
	alert := &domain.AlarmEvent{
		TripID:    t.tripID,
		Event:     event,
		State:     t.alarm.State(),
		Timestamp: t.now().Unix(),
	}
	if t.lastSample != nil {
		loc := t.lastSample.Location
		alert.Location = &loc
		alert.DistanceMeters = t.lastDistance
	}
	ok := t.pool.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.settings.SaveTimeout)
		defer cancel()
		if err := t.events.PublishEvent(ctx, alert); err != nil {
			t.logger.Error().Err(err).Str("event", string(event)).Msg("failed to publish alarm event")
		}
	})
	if !ok {
		t.logger.Warn().Str("event", string(event)).Msg("event queue full, dropping alarm event")
	}
}
