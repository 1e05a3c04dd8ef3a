package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
)

// Signal is the user-facing alarm output. Every method is best effort; a
// device without a capability returns nil.
type Signal interface {
	Start(volume float64, loop bool) error
	Stop() error
	Vibrate(pattern []time.Duration) error
	Notify(title, body string) error
}

type AlarmSettings struct {
	Volume         float64         `yaml:"volume"`
	Loop           bool            `yaml:"loop"`
	Vibrate        bool            `yaml:"vibrate"`
	VibratePattern []time.Duration `yaml:"vibrate_pattern"`
	Notify         bool            `yaml:"notifications"`
	NotifyTitle    string          `yaml:"notification_title"`
	NotifyBody     string          `yaml:"notification_body"`
}

// AlarmMachine owns the alarm lifecycle of one trip:
//
//	idle --enter--> triggered --exit--> idle
//	triggered --user stop--> stopped_by_user --exit--> idle
//
// Trip end is terminal from any state. State changes are not safe for
// concurrent use; the tracker serializes them. Signal calls go through the
// runner, which by default runs them inline.
type AlarmMachine struct {
	state      domain.AlarmState
	signal     Signal
	settings   AlarmSettings
	logger     zerolog.Logger
	terminated bool
	run        signalRunner

	// epoch changes on every state change; a queued retry from an older
	// epoch is skipped.
	epoch atomic.Uint64

	errMu     sync.Mutex
	signalErr error
}

// signalRunner executes signal calls. Go may return before the call ran; Do
// waits for it. Calls run in submission order.
type signalRunner interface {
	Go(func())
	Do(func())
}

type inlineRunner struct{}

func (inlineRunner) Go(fn func()) { fn() }
func (inlineRunner) Do(fn func()) { fn() }

func NewAlarmMachine(signal Signal, settings AlarmSettings, logger zerolog.Logger) *AlarmMachine {
	if signal == nil {
		signal = nopSignal{}
	}
	return &AlarmMachine{
		state:    domain.AlarmIdle,
		signal:   signal,
		settings: settings,
		logger:   logger,
		run:      inlineRunner{},
	}
}

// setRunner must be called before the first transition.
func (m *AlarmMachine) setRunner(r signalRunner) { m.run = r }

func (m *AlarmMachine) State() domain.AlarmState { return m.state }

// SignalError is the error of the last failed attempt to start the signal
// while triggered, or nil.
func (m *AlarmMachine) SignalError() error {
	if m.state != domain.AlarmTriggered {
		return nil
	}
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.signalErr
}

func (m *AlarmMachine) setSignalErr(err error) {
	m.errMu.Lock()
	m.signalErr = err
	m.errMu.Unlock()
}

func (m *AlarmMachine) transition(to domain.AlarmState) {
	m.state = to
	m.epoch.Add(1)
}

// Observe applies a containment evaluation and returns the resulting event,
// if any.
func (m *AlarmMachine) Observe(ev Evaluation) (domain.AlarmEventType, bool) {
	if m.terminated || !ev.Transitioned {
		return "", false
	}

	switch {
	case m.state == domain.AlarmIdle && ev.State == domain.Inside:
		m.transition(domain.AlarmTriggered)
		m.startSignal()
		return domain.AlarmTriggeredEvent, true
	case m.state == domain.AlarmTriggered && ev.State == domain.Outside:
		m.transition(domain.AlarmIdle)
		m.stopSignal()
		return domain.AlarmClearedEvent, true
	case m.state == domain.AlarmStoppedByUser && ev.State == domain.Outside:
		m.transition(domain.AlarmIdle)
		return domain.AlarmRearmedEvent, true
	}
	return "", false
}

// Stop is the user's acknowledgement. It silences a triggered alarm and keeps
// it muted until the user leaves the radius.
func (m *AlarmMachine) Stop() bool {
	if m.terminated || m.state != domain.AlarmTriggered {
		return false
	}
	m.transition(domain.AlarmStoppedByUser)
	m.stopSignal()
	return true
}

// Retry re-attempts a signal start that failed while triggered.
func (m *AlarmMachine) Retry() error {
	if retry := m.retry(); retry != nil {
		return retry()
	}
	return nil
}

// retry checks under the caller's lock whether a retry is due and returns the
// attempt, which the caller runs after releasing it. It returns nil when there
// is nothing to retry.
func (m *AlarmMachine) retry() func() error {
	if m.terminated || m.SignalError() == nil {
		return nil
	}
	epoch := m.epoch.Load()
	return func() error {
		var err error
		m.run.Do(func() {
			if m.epoch.Load() != epoch {
				return
			}
			err = m.signal.Start(m.settings.Volume, m.settings.Loop)
			m.setSignalErr(err)
		})
		return err
	}
}

// Terminate ends the lifecycle. The signal is silenced at most once.
func (m *AlarmMachine) Terminate() {
	if m.terminated {
		return
	}
	m.terminated = true
	if m.state == domain.AlarmTriggered {
		m.stopSignal()
	}
	m.transition(domain.AlarmIdle)
}

func (m *AlarmMachine) startSignal() {
	settings := m.settings
	m.run.Go(func() {
		err := m.signal.Start(settings.Volume, settings.Loop)
		m.setSignalErr(err)
		if err != nil {
			m.logger.Warn().Err(err).Msg("alarm signal failed to start")
		}
		if settings.Vibrate {
			if err := m.signal.Vibrate(settings.VibratePattern); err != nil {
				m.logger.Warn().Err(err).Msg("alarm vibration failed")
			}
		}
		if settings.Notify {
			if err := m.signal.Notify(settings.NotifyTitle, settings.NotifyBody); err != nil {
				m.logger.Warn().Err(err).Msg("alarm notification failed")
			}
		}
	})
}

func (m *AlarmMachine) stopSignal() {
	m.run.Go(func() {
		m.setSignalErr(nil)
		if err := m.signal.Stop(); err != nil {
			m.logger.Warn().Err(err).Msg("alarm signal failed to stop")
		}
	})
}

type nopSignal struct{}

func (nopSignal) Start(float64, bool) error { return nil }
func (nopSignal) Stop() error { return nil }
func (nopSignal) Vibrate([]time.Duration) error { return nil }
func (nopSignal) Notify(string, string) error { return nil }
