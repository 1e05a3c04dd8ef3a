package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/geo"
	"github.com/vivekgangdhar11/wakeme/module/core/location"
)

var t0 = time.Unix(1715003456, 0)

type trackerHarness struct {
	tracker *Tracker
	source  *fakeSource
	store   *fakeStore
	signal  *fakeSignal
	events  *fakePublisher
	clock   *manualClock
}

func newHarness(t *testing.T, radius float64) *trackerHarness {
	t.Helper()
	h := &trackerHarness{
		source: &fakeSource{},
		store:  &fakeStore{},
		signal: &fakeSignal{},
		events: &fakePublisher{},
		clock:  &manualClock{now: t0},
	}
	settings := DefaultTrackingSettings()
	settings.Watch = location.WatchOptions{}
	h.tracker = NewTracker("trip-1", domain.Geofence{Center: origin, RadiusMeters: radius}, settings,
		h.source, h.store, h.signal, zerolog.Nop(),
		WithClock(h.clock.Now), WithEventPublisher(h.events))
	require.NoError(t, h.tracker.Start())
	return h
}

// at delivers a sample taken the given offset after start.
func (h *trackerHarness) at(offset time.Duration, loc domain.Coordinate) {
	ts := t0.Add(offset)
	h.clock.Set(ts)
	h.source.emit(domain.GeoSample{Location: loc, Accuracy: 5, Timestamp: ts})
}

func offsets(times []time.Time) []time.Duration {
	out := make([]time.Duration, len(times))
	for i, ts := range times {
		out[i] = ts.Sub(t0)
	}
	return out
}

func TestTracker_PeriodicSaves(t *testing.T) {
	h := newHarness(t, 500)

	for s := 1; s <= 65; s++ {
		h.at(time.Duration(s)*time.Second, north(5000))
	}
	h.tracker.Close()

	assert.Equal(t, []time.Duration{30 * time.Second, 60 * time.Second}, offsets(h.store.savedTimes()))
	assert.Equal(t, 0, h.store.ended, "close must not end the trip")
	assert.Equal(t, 0, h.signal.starts)
}

func TestTracker_PeriodicSaveUsesFirstSampleAfterDue(t *testing.T) {
	h := newHarness(t, 500)

	h.at(10*time.Second, north(5000))
	h.at(45*time.Second, north(5000))
	h.at(50*time.Second, north(5000))
	h.at(61*time.Second, north(5000))
	h.tracker.Close()

	assert.Equal(t, []time.Duration{45 * time.Second, 61 * time.Second}, offsets(h.store.savedTimes()))
}

func TestTracker_ArrivalSavedOnce(t *testing.T) {
	h := newHarness(t, 500)

	h.at(10*time.Second, north(2000))
	h.at(30*time.Second, north(300))
	h.tracker.Close()

	assert.Equal(t, []time.Duration{30 * time.Second}, offsets(h.store.savedTimes()),
		"arrival coinciding with the periodic save must be stored once")
	assert.Equal(t, 1, h.signal.starts)
}

func TestTracker_EndPersistsFinalSample(t *testing.T) {
	h := newHarness(t, 500)

	h.at(5*time.Second, north(2000))
	h.at(12*time.Second, north(300))
	h.at(20*time.Second, north(250))
	require.NoError(t, h.tracker.End(context.Background()))

	assert.Equal(t, []time.Duration{12 * time.Second, 20 * time.Second}, offsets(h.store.savedTimes()))
	assert.Equal(t, 1, h.store.ended)
	assert.True(t, h.source.canceled)
	assert.Equal(t, 1, h.signal.stops, "ending silences the triggered alarm")

	st := h.tracker.Status()
	assert.True(t, st.Ended)
	assert.Equal(t, domain.AlarmIdle, st.AlarmState)
}

func TestTracker_EndDoesNotDuplicateLastSavedSample(t *testing.T) {
	h := newHarness(t, 500)

	h.at(30*time.Second, north(5000))
	require.NoError(t, h.tracker.End(context.Background()))

	assert.Equal(t, []time.Duration{30 * time.Second}, offsets(h.store.savedTimes()))
}

func TestTracker_EndWithoutSamples(t *testing.T) {
	h := newHarness(t, 500)

	require.NoError(t, h.tracker.End(context.Background()))
	require.NoError(t, h.tracker.End(context.Background()))
	h.tracker.Close()

	assert.Empty(t, h.store.savedTimes())
	assert.Equal(t, 1, h.store.ended, "end runs once")
	assert.Equal(t, []domain.AlarmEventType{domain.TripEndedEvent}, h.events.published())
}

func TestTracker_SampleAfterEndIsIgnored(t *testing.T) {
	h := newHarness(t, 500)
	h.at(5*time.Second, north(2000))
	require.NoError(t, h.tracker.End(context.Background()))

	// A stale callback delivered after cancellation.
	h.at(6*time.Second, north(100))

	assert.Equal(t, 0, h.signal.starts)
	st := h.tracker.Status()
	assert.Equal(t, 1, st.Samples)
	assert.Equal(t, domain.Outside, st.Containment)
}

func TestTracker_StopAndRearm(t *testing.T) {
	h := newHarness(t, 500)

	h.at(1*time.Second, north(400))
	require.Equal(t, domain.AlarmTriggered, h.tracker.Status().AlarmState)

	assert.True(t, h.tracker.StopAlarm())
	assert.False(t, h.tracker.StopAlarm())
	assert.Equal(t, domain.AlarmStoppedByUser, h.tracker.Status().AlarmState)

	h.at(2*time.Second, north(300))
	assert.Equal(t, domain.AlarmStoppedByUser, h.tracker.Status().AlarmState, "still inside, stays muted")

	h.at(3*time.Second, north(800))
	assert.Equal(t, domain.AlarmIdle, h.tracker.Status().AlarmState)

	h.at(4*time.Second, north(200))
	assert.Equal(t, domain.AlarmTriggered, h.tracker.Status().AlarmState)
	h.tracker.settleSignals()
	assert.Equal(t, 2, h.signal.starts)

	h.tracker.Close()
	assert.Equal(t, []domain.AlarmEventType{
		domain.AlarmTriggeredEvent,
		domain.AlarmStoppedEvent,
		domain.AlarmRearmedEvent,
		domain.AlarmTriggeredEvent,
		domain.TripEndedEvent,
	}, h.events.published())
}

func TestTracker_BoundaryTriggers(t *testing.T) {
	h := newHarness(t, geo.Distance(north(500), origin))
	h.at(time.Second, north(500))
	assert.Equal(t, domain.AlarmTriggered, h.tracker.Status().AlarmState)
	h.tracker.Close()
}

func TestTracker_SignalFailureAndRetry(t *testing.T) {
	h := newHarness(t, 500)
	h.signal.startErr = errors.New("autoplay blocked")

	h.at(time.Second, north(100))
	h.tracker.settleSignals()
	st := h.tracker.Status()
	assert.Equal(t, domain.AlarmTriggered, st.AlarmState)
	assert.Equal(t, "autoplay blocked", st.SignalError)

	h.signal.startErr = nil
	require.NoError(t, h.tracker.RetryAlarm())
	assert.Empty(t, h.tracker.Status().SignalError)
	assert.Equal(t, 2, h.signal.starts)
	h.tracker.Close()
}

func TestTracker_RetryAfterStopIsSkipped(t *testing.T) {
	h := newHarness(t, 500)
	h.signal.startErr = errors.New("autoplay blocked")

	h.at(time.Second, north(100))
	h.tracker.settleSignals()
	require.True(t, h.tracker.StopAlarm())

	require.NoError(t, h.tracker.RetryAlarm())
	h.tracker.Close()
	assert.Equal(t, 1, h.signal.starts, "a stopped alarm is not restarted")
}

// slowSignal holds Start until released, like a device that does not ack.
type slowSignal struct {
	fakeSignal
	entered chan struct{}
	release chan struct{}
}

func (s *slowSignal) Start(volume float64, loop bool) error {
	s.entered <- struct{}{}
	<-s.release
	return s.fakeSignal.Start(volume, loop)
}

func TestTracker_SlowSignalDoesNotBlockStop(t *testing.T) {
	source := &fakeSource{}
	sig := &slowSignal{entered: make(chan struct{}, 1), release: make(chan struct{})}
	tr := NewTracker("trip-1", domain.Geofence{Center: origin, RadiusMeters: 500}, DefaultTrackingSettings(),
		source, &fakeStore{}, sig, zerolog.Nop())
	require.NoError(t, tr.Start())

	source.emit(domain.GeoSample{Location: north(100), Timestamp: time.Now()})
	select {
	case <-sig.entered:
	case <-time.After(time.Second):
		t.Fatal("signal was never started")
	}

	done := make(chan TrackerStatus)
	go func() {
		tr.StopAlarm()
		done <- tr.Status()
	}()
	select {
	case st := <-done:
		assert.Equal(t, domain.AlarmStoppedByUser, st.AlarmState)
	case <-time.After(time.Second):
		t.Fatal("stop waited for the alarm signal")
	}

	close(sig.release)
	tr.Close()
	assert.Equal(t, 1, sig.count(&sig.starts))
	assert.Equal(t, 1, sig.count(&sig.stops), "stop runs after the pending start")
}

func TestTracker_DroppedSaveIsPersistedOnEnd(t *testing.T) {
	h := newHarness(t, 500)
	release := make(chan struct{})
	h.store.block = release

	// One save in flight plus a full queue; the rest are dropped.
	n := saveQueueSize + 5
	for i := 1; i <= n; i++ {
		h.at(time.Duration(i)*30*time.Second, north(5000))
	}
	close(release)
	require.NoError(t, h.tracker.End(context.Background()))

	saved := offsets(h.store.savedTimes())
	require.NotEmpty(t, saved)
	assert.Less(t, len(saved), n)
	assert.Equal(t, time.Duration(n)*30*time.Second, saved[len(saved)-1],
		"a sample whose save was dropped is stored when the trip ends")
}

func TestTracker_ForwardsWatchOptions(t *testing.T) {
	h := newHarness(t, 500)
	h.tracker.Close()

	require.Len(t, h.signal.watches, 1)
	assert.Equal(t, location.WatchOptions{}, h.signal.watches[0])
}

func TestTracker_LocationErrorsKeepTracking(t *testing.T) {
	h := newHarness(t, 500)

	st := h.tracker.Status()
	assert.True(t, st.Locating)
	assert.Nil(t, st.DistanceMeters)

	h.source.fail(location.ErrTimeout)
	st = h.tracker.Status()
	assert.False(t, st.Locating)
	assert.Equal(t, location.ErrTimeout.Error(), st.LocationError)

	h.at(40*time.Second, north(1000))
	st = h.tracker.Status()
	assert.Empty(t, st.LocationError)
	require.NotNil(t, st.DistanceMeters)
	assert.InDelta(t, 1000, *st.DistanceMeters, 0.01)
	assert.Equal(t, int64(40), st.ElapsedSeconds)
	h.tracker.Close()
}

func TestTracker_StartFailsWithoutCapability(t *testing.T) {
	source := &fakeSource{err: location.ErrUnavailable}
	store := &fakeStore{}
	tr := NewTracker("trip-1", domain.Geofence{Center: origin, RadiusMeters: 500}, DefaultTrackingSettings(),
		source, store, nil, zerolog.Nop())

	err := tr.Start()
	assert.ErrorIs(t, err, location.ErrUnavailable)

	// Ending a tracker that never started still closes the trip.
	require.NoError(t, tr.End(context.Background()))
	assert.Equal(t, 1, store.ended)
}

func TestTracker_SaveErrorsDoNotStopTracking(t *testing.T) {
	h := newHarness(t, 500)
	h.store.saveErr = errors.New("db down")

	h.at(30*time.Second, north(5000))
	h.at(31*time.Second, north(100))
	assert.Equal(t, domain.AlarmTriggered, h.tracker.Status().AlarmState)
	h.tracker.Close()

	assert.Len(t, h.store.savedTimes(), 2)
}

func TestTrackerStatus_String(t *testing.T) {
	d := 1234.0
	st := TrackerStatus{
		AlarmState:     domain.AlarmTriggered,
		DistanceMeters: &d,
		Elapsed:        time.Hour + 2*time.Minute + 5*time.Second,
		SignalError:    "muted",
	}
	assert.Equal(t, "01:02:05  1.2 km  alarm triggered  [signal: muted]", st.String())

	st = TrackerStatus{AlarmState: domain.AlarmIdle, Locating: true, Elapsed: 42 * time.Second}
	assert.Equal(t, "00:00:42  locating...  alarm idle", st.String())

	st = TrackerStatus{AlarmState: domain.AlarmIdle, LocationError: "location: timeout"}
	assert.Equal(t, "00:00:00  no fix  alarm idle  (location: timeout)", st.String())
}
