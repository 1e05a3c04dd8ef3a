package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/repository/database"
)

var _ PointStore = (*TripService)(nil)

type TripService struct {
	repo          database.TripRepository
	now           func() time.Time
	newID         func() string
	defaultRadius float64
}

type TripOption func(*TripService)

// WithDefaultRadius fills in the wake radius of trips created without one.
func WithDefaultRadius(meters float64) TripOption {
	return func(s *TripService) { s.defaultRadius = meters }
}

func NewTripService(repo database.TripRepository, opts ...TripOption) *TripService {
	s := &TripService{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TripService) Create(ctx context.Context, in *domain.NewTrip) (*domain.Trip, error) {
	if in.RadiusMeters == 0 && s.defaultRadius > 0 {
		in.RadiusMeters = s.defaultRadius
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	trip := &domain.Trip{
		ID:               s.newID(),
		Title:            strings.TrimSpace(in.Title),
		Start:            in.Start,
		Destination:      *in.Destination,
		RadiusMeters:     in.RadiusMeters,
		EtaOffsetMinutes: in.EtaOffsetMinutes,
		LocationPoints:   []domain.LocationPoint{},
		CreatedAt:        s.now().UTC(),
	}
	trip.Destination.PlaceName = strings.TrimSpace(trip.Destination.PlaceName)

	if err := s.repo.Create(ctx, trip); err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}
	return trip, nil
}

func (s *TripService) List(ctx context.Context) ([]domain.Trip, error) {
	return s.repo.List(ctx)
}

func (s *TripService) Get(ctx context.Context, id string) (*domain.Trip, error) {
	return s.repo.Get(ctx, id)
}

func (s *TripService) Update(ctx context.Context, id string, update *domain.TripUpdate) (*domain.Trip, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	trip, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	update.Apply(trip)
	if err := s.repo.Update(ctx, trip); err != nil {
		return nil, err
	}
	return trip, nil
}

func (s *TripService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AddPoint appends a point to the trip history and marks the trip started if
// this is its first point. A zero timestamp means now.
func (s *TripService) AddPoint(ctx context.Context, id string, at domain.Coordinate, ts time.Time) (*domain.Trip, error) {
	if err := at.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if ts.IsZero() {
		ts = now
	}
	point := domain.LocationPoint{Lat: at.Lat, Lng: at.Lng, Ts: ts.UTC()}
	if err := s.repo.AppendPoint(ctx, id, point, now); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// End stamps endedAt. Ending an already ended trip keeps the first stamp.
func (s *TripService) End(ctx context.Context, id string) (*domain.Trip, error) {
	if err := s.repo.End(ctx, id, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *TripService) SavePoint(ctx context.Context, tripID string, sample domain.GeoSample) error {
	_, err := s.AddPoint(ctx, tripID, sample.Location, sample.Timestamp)
	return err
}

func (s *TripService) EndTrip(ctx context.Context, tripID string) error {
	_, err := s.End(ctx, tripID)
	return err
}
