// Package memory keeps trips in process memory. It backs the server when no
// Postgres DSN is configured and is used as a real repository in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/repository/database"
)

var _ database.TripRepository = (*TripRepo)(nil)

type TripRepo struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip
}

func NewTripRepo() *TripRepo {
	return &TripRepo{trips: make(map[string]*domain.Trip)}
}

func (r *TripRepo) Create(_ context.Context, trip *domain.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trips[trip.ID] = clone(trip)
	return nil
}

func (r *TripRepo) List(_ context.Context) ([]domain.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trips := make([]domain.Trip, 0, len(r.trips))
	for _, t := range r.trips {
		trips = append(trips, *clone(t))
	}
	sort.Slice(trips, func(i, j int) bool {
		return trips[i].CreatedAt.After(trips[j].CreatedAt)
	})
	return trips, nil
}

func (r *TripRepo) Get(_ context.Context, id string) (*domain.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.trips[id]
	if !ok {
		return nil, domain.ErrTripNotFound
	}
	return clone(t), nil
}

func (r *TripRepo) Update(_ context.Context, trip *domain.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.trips[trip.ID]
	if !ok {
		return domain.ErrTripNotFound
	}
	next := clone(trip)
	next.LocationPoints = cur.LocationPoints
	next.CreatedAt = cur.CreatedAt
	next.StartedAt = cur.StartedAt
	next.EndedAt = cur.EndedAt
	r.trips[trip.ID] = next
	return nil
}

func (r *TripRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.trips[id]; !ok {
		return domain.ErrTripNotFound
	}
	delete(r.trips, id)
	return nil
}

func (r *TripRepo) AppendPoint(_ context.Context, id string, point domain.LocationPoint, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trips[id]
	if !ok {
		return domain.ErrTripNotFound
	}
	if t.StartedAt == nil {
		t.StartedAt = &startedAt
	}
	t.LocationPoints = append(t.LocationPoints, point)
	return nil
}

func (r *TripRepo) End(_ context.Context, id string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trips[id]
	if !ok {
		return domain.ErrTripNotFound
	}
	if t.EndedAt == nil {
		t.EndedAt = &endedAt
	}
	return nil
}

func clone(t *domain.Trip) *domain.Trip {
	c := *t
	if t.Start != nil {
		start := *t.Start
		c.Start = &start
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.EndedAt != nil {
		ts := *t.EndedAt
		c.EndedAt = &ts
	}
	c.LocationPoints = append([]domain.LocationPoint{}, t.LocationPoints...)
	return &c
}
