package service

import (
	"context"
	"errors"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/repository/publisher"
	"github.com/vivekgangdhar11/wakeme/module/core/location"
)

var (
	ErrAlreadyTracking = errors.New("trip is already being tracked")
	ErrTripEnded       = errors.New("trip has ended")
	ErrNotTracking     = errors.New("trip is not being tracked")
)

// SignalFactory returns the alarm output for a trip's device.
type SignalFactory func(tripID string) Signal

type session struct {
	tracker *Tracker
	feed    *location.FeedSource
}

// TrackingService runs one tracking session per trip inside the server. Device
// position reports are pushed into a session's feed source.
type TrackingService struct {
	trips    *TripService
	settings TrackingSettings
	signals  SignalFactory
	events   publisher.AlarmPublisher
	logger   zerolog.Logger
	sessions cmap.ConcurrentMap[string, *session]
}

func NewTrackingService(trips *TripService, settings TrackingSettings, signals SignalFactory,
	events publisher.AlarmPublisher, logger zerolog.Logger) *TrackingService {
	return &TrackingService{
		trips:    trips,
		settings: settings,
		signals:  signals,
		events:   events,
		logger:   logger.With().Str("component", "tracking").Logger(),
		sessions: cmap.New[*session](),
	}
}

func (s *TrackingService) Start(ctx context.Context, tripID string) (TrackerStatus, error) {
	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return TrackerStatus{}, err
	}
	if trip.EndedAt != nil {
		return TrackerStatus{}, ErrTripEnded
	}

	var signal Signal
	if s.signals != nil {
		signal = s.signals(tripID)
	}
	opts := []TrackerOption{}
	if s.events != nil {
		opts = append(opts, WithEventPublisher(s.events))
	}

	feed := location.NewFeedSource()
	sess := &session{
		feed:    feed,
		tracker: NewTracker(tripID, trip.Geofence(), s.settings, feed, s.trips, signal, s.logger, opts...),
	}
	if !s.sessions.SetIfAbsent(tripID, sess) {
		return TrackerStatus{}, ErrAlreadyTracking
	}
	if err := sess.tracker.Start(); err != nil {
		s.sessions.Remove(tripID)
		return TrackerStatus{}, err
	}
	return sess.tracker.Status(), nil
}

// Feed relays a device sample. Samples the watch options reject are dropped
// silently.
func (s *TrackingService) Feed(tripID string, sample domain.GeoSample) error {
	sess, ok := s.sessions.Get(tripID)
	if !ok {
		return ErrNotTracking
	}
	sess.feed.Push(sample)
	return nil
}

func (s *TrackingService) FeedError(tripID string, err error) error {
	sess, ok := s.sessions.Get(tripID)
	if !ok {
		return ErrNotTracking
	}
	sess.feed.PushError(err)
	return nil
}

func (s *TrackingService) Status(tripID string) (TrackerStatus, error) {
	sess, ok := s.sessions.Get(tripID)
	if !ok {
		return TrackerStatus{}, ErrNotTracking
	}
	return sess.tracker.Status(), nil
}

// StopAlarm reports whether a sounding alarm was silenced.
func (s *TrackingService) StopAlarm(tripID string) (bool, error) {
	sess, ok := s.sessions.Get(tripID)
	if !ok {
		return false, ErrNotTracking
	}
	return sess.tracker.StopAlarm(), nil
}

func (s *TrackingService) RetryAlarm(tripID string) error {
	sess, ok := s.sessions.Get(tripID)
	if !ok {
		return ErrNotTracking
	}
	return sess.tracker.RetryAlarm()
}

// End finishes the session and the trip record.
func (s *TrackingService) End(ctx context.Context, tripID string) error {
	sess, ok := s.sessions.Pop(tripID)
	if !ok {
		return ErrNotTracking
	}
	return sess.tracker.End(ctx)
}

// Close drops the session without ending the trip.
func (s *TrackingService) Close(tripID string) error {
	sess, ok := s.sessions.Pop(tripID)
	if !ok {
		return ErrNotTracking
	}
	sess.tracker.Close()
	return nil
}

func (s *TrackingService) Active() []string {
	return s.sessions.Keys()
}

// Shutdown closes every session.
func (s *TrackingService) Shutdown() {
	for _, id := range s.sessions.Keys() {
		if sess, ok := s.sessions.Pop(id); ok {
			sess.tracker.Close()
		}
	}
	s.logger.Info().Msg("tracking sessions closed")
}
