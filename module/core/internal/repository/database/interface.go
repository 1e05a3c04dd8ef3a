package database

import (
	"context"
	"time"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
)

// TripRepository stores trips and their location history. Lookups of a
// missing trip return domain.ErrTripNotFound.
type TripRepository interface {
	Create(ctx context.Context, trip *domain.Trip) error
	List(ctx context.Context) ([]domain.Trip, error)
	Get(ctx context.Context, id string) (*domain.Trip, error)
	Update(ctx context.Context, trip *domain.Trip) error
	Delete(ctx context.Context, id string) error
	// AppendPoint adds a point and sets startedAt to the given time if unset.
	AppendPoint(ctx context.Context, id string, point domain.LocationPoint, startedAt time.Time) error
	// End sets endedAt if unset.
	End(ctx context.Context, id string, endedAt time.Time) error
}
