// Package location defines the location source contract used by the tracking
// loop and provides the sources the repository ships with.
package location

import (
	"errors"
	"sync"
	"time"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
)

var (
	ErrUnavailable         = errors.New("location: capability unavailable")
	ErrPermissionDenied    = errors.New("location: permission denied")
	ErrPositionUnavailable = errors.New("location: position unavailable")
	ErrTimeout             = errors.New("location: timeout")
	ErrAlreadyWatching     = errors.New("location: source is already being watched")
)

// WatchOptions are passed to the source on Watch. HighAccuracy is a request
// to the device to prefer its most precise positioning mode over battery
// saving; it never filters samples. MaxAccuracyMeters, when positive, drops
// samples whose reported accuracy is worse than the limit.
type WatchOptions struct {
	HighAccuracy      bool          `yaml:"high_accuracy"`
	MaxAccuracyMeters float64       `yaml:"max_accuracy_meters"`
	MaxSampleAge      time.Duration `yaml:"max_sample_age"`
	Timeout           time.Duration `yaml:"timeout"`
}

type Source interface {
	// Watch starts delivering samples. It fails with ErrUnavailable when the
	// source cannot produce positions at all; later failures go to onError.
	Watch(onSample func(domain.GeoSample), onError func(error), opts WatchOptions) (Subscription, error)
}

type Subscription interface {
	Cancel()
}

// admit reports whether a sample satisfies the staleness and accuracy limits.
func (o WatchOptions) admit(s domain.GeoSample, now time.Time) bool {
	if o.MaxSampleAge > 0 && !s.Timestamp.IsZero() && now.Sub(s.Timestamp) > o.MaxSampleAge {
		return false
	}
	if o.MaxAccuracyMeters > 0 && s.Accuracy > o.MaxAccuracyMeters {
		return false
	}
	return true
}

// watchdog reports ErrTimeout whenever no sample arrived within the timeout.
// It keeps re-arming itself until stopped.
type watchdog struct {
	mu      sync.Mutex
	timer   *time.Timer
	timeout time.Duration
	stopped bool
}

func newWatchdog(timeout time.Duration, onTimeout func(error)) *watchdog {
	w := &watchdog{timeout: timeout}
	if timeout <= 0 {
		return w
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timer = time.AfterFunc(timeout, func() {
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.timer.Reset(w.timeout)
		w.mu.Unlock()
		onTimeout(ErrTimeout)
	})
	return w
}

func (w *watchdog) kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil && !w.stopped {
		w.timer.Reset(w.timeout)
	}
}

func (w *watchdog) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

type cancelFunc struct {
	once sync.Once
	fn   func()
}

func (c *cancelFunc) Cancel() {
	c.once.Do(c.fn)
}
