package location

import (
	"sync"
	"time"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
)

// FeedSource is a Source whose samples are pushed in from outside, e.g. by the
// MQTT subscriber relaying a device's position reports.
type FeedSource struct {
	mu       sync.Mutex
	onSample func(domain.GeoSample)
	onError  func(error)
	opts     WatchOptions
	dog      *watchdog
	now      func() time.Time
}

func NewFeedSource() *FeedSource {
	return &FeedSource{now: time.Now}
}

func (f *FeedSource) Watch(onSample func(domain.GeoSample), onError func(error), opts WatchOptions) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onSample != nil {
		return nil, ErrAlreadyWatching
	}
	f.onSample = onSample
	f.onError = onError
	f.opts = opts
	f.dog = newWatchdog(opts.Timeout, func(err error) { f.PushError(err) })
	return &cancelFunc{fn: f.cancel}, nil
}

// Push delivers a sample to the watcher. It reports false when nobody is
// watching or the sample was filtered out.
func (f *FeedSource) Push(s domain.GeoSample) bool {
	f.mu.Lock()
	onSample, opts, dog := f.onSample, f.opts, f.dog
	f.mu.Unlock()

	if onSample == nil || !opts.admit(s, f.now()) {
		return false
	}
	dog.kick()
	onSample(s)
	return true
}

func (f *FeedSource) PushError(err error) bool {
	f.mu.Lock()
	onError := f.onError
	f.mu.Unlock()

	if onError == nil {
		return false
	}
	onError(err)
	return true
}

func (f *FeedSource) cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dog != nil {
		f.dog.stop()
	}
	f.onSample = nil
	f.onError = nil
	f.dog = nil
}
