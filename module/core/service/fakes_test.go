package service

import (
	"context"
	"sync"
	"time"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/location"
)

// metersPerDegree is the length of one degree of latitude on the sphere used
// by geo.Distance.
const metersPerDegree = 6371000 * 3.141592653589793 / 180

// north returns the point the given distance due north of the origin.
func north(meters float64) domain.Coordinate {
	return domain.Coordinate{Lat: meters / metersPerDegree, Lng: 0}
}

var origin = domain.Coordinate{Lat: 0, Lng: 0}

type fakeSource struct {
	mu       sync.Mutex
	err      error
	onSample func(domain.GeoSample)
	onError  func(error)
	canceled bool
}

func (f *fakeSource) Watch(onSample func(domain.GeoSample), onError func(error), _ location.WatchOptions) (location.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSample = onSample
	f.onError = onError
	return f, nil
}

func (f *fakeSource) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = true
}

func (f *fakeSource) emit(s domain.GeoSample) {
	f.mu.Lock()
	fn := f.onSample
	f.mu.Unlock()
	fn(s)
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()
	fn(err)
}

type fakeStore struct {
	mu      sync.Mutex
	saved   []domain.GeoSample
	ended   int
	saveErr error
	// block, when set, holds every save until it is closed.
	block chan struct{}
}

func (s *fakeStore) SavePoint(_ context.Context, _ string, sample domain.GeoSample) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, sample)
	return s.saveErr
}

func (s *fakeStore) EndTrip(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended++
	return nil
}

func (s *fakeStore) savedTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Time, len(s.saved))
	for i, sample := range s.saved {
		out[i] = sample.Timestamp
	}
	return out
}

type fakeSignal struct {
	mu       sync.Mutex
	starts   int
	stops    int
	vibrates int
	notifies int
	watches  []location.WatchOptions
	startErr error
}

func (s *fakeSignal) Start(float64, bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	return s.startErr
}

func (s *fakeSignal) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSignal) Vibrate([]time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vibrates++
	return nil
}

func (s *fakeSignal) Notify(string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifies++
	return nil
}

func (s *fakeSignal) RequestWatch(opts location.WatchOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watches = append(s.watches, opts)
	return nil
}

func (s *fakeSignal) count(field *int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *field
}

// settleSignals waits for the alarm signal calls queued so far.
func (t *Tracker) settleSignals() {
	t.mu.Lock()
	q := t.signals
	t.mu.Unlock()
	if q != nil {
		q.Do(func() {})
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.AlarmEventType
}

func (p *fakePublisher) PublishEvent(_ context.Context, alert *domain.AlarmEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, alert.Event)
	return nil
}

func (p *fakePublisher) published() []domain.AlarmEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.AlarmEventType(nil), p.events...)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
