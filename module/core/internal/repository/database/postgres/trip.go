package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/internal/repository/database"
)

var _ database.TripRepository = (*TripRepo)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS trips (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	start_lat          DOUBLE PRECISION,
	start_lng          DOUBLE PRECISION,
	dest_lat           DOUBLE PRECISION NOT NULL,
	dest_lng           DOUBLE PRECISION NOT NULL,
	place_name         TEXT NOT NULL DEFAULT '',
	radius_meters      DOUBLE PRECISION NOT NULL,
	eta_offset_minutes INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL,
	started_at         TIMESTAMPTZ,
	ended_at           TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS trip_points (
	id          BIGSERIAL PRIMARY KEY,
	trip_id     TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trip_points_trip_id_idx ON trip_points (trip_id, id);
`

const tripColumns = `id, title, start_lat, start_lng, dest_lat, dest_lng, place_name, radius_meters, eta_offset_minutes, created_at, started_at, ended_at`

type tripRow struct {
	ID               string          `db:"id"`
	Title            string          `db:"title"`
	StartLat         sql.NullFloat64 `db:"start_lat"`
	StartLng         sql.NullFloat64 `db:"start_lng"`
	DestLat          float64         `db:"dest_lat"`
	DestLng          float64         `db:"dest_lng"`
	PlaceName        string          `db:"place_name"`
	RadiusMeters     float64         `db:"radius_meters"`
	EtaOffsetMinutes int             `db:"eta_offset_minutes"`
	CreatedAt        time.Time       `db:"created_at"`
	StartedAt        sql.NullTime    `db:"started_at"`
	EndedAt          sql.NullTime    `db:"ended_at"`
}

type pointRow struct {
	TripID     string    `db:"trip_id"`
	Latitude   float64   `db:"latitude"`
	Longitude  float64   `db:"longitude"`
	RecordedAt time.Time `db:"recorded_at"`
}

type TripRepo struct {
	db *sqlx.DB
}

func NewTripRepo(db *sqlx.DB) *TripRepo {
	return &TripRepo{db: db}
}

// Migrate creates the tables if they do not exist yet.
func (r *TripRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate trips: %w", err)
	}
	return nil
}

func (r *TripRepo) Create(ctx context.Context, trip *domain.Trip) error {
	var startLat, startLng sql.NullFloat64
	if trip.Start != nil {
		startLat = sql.NullFloat64{Float64: trip.Start.Lat, Valid: true}
		startLng = sql.NullFloat64{Float64: trip.Start.Lng, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trips (id, title, start_lat, start_lng, dest_lat, dest_lng, place_name, radius_meters, eta_offset_minutes, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		trip.ID, trip.Title, startLat, startLng, trip.Destination.Lat, trip.Destination.Lng,
		trip.Destination.PlaceName, trip.RadiusMeters, trip.EtaOffsetMinutes, trip.CreatedAt,
	)
	return err
}

func (r *TripRepo) List(ctx context.Context) ([]domain.Trip, error) {
	var rows []tripRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+tripColumns+` FROM trips ORDER BY created_at DESC`); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.Trip{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var points []pointRow
	if err := r.db.SelectContext(ctx, &points,
		`SELECT trip_id, latitude, longitude, recorded_at FROM trip_points WHERE trip_id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	); err != nil {
		return nil, err
	}

	byTrip := make(map[string][]domain.LocationPoint, len(rows))
	for _, p := range points {
		byTrip[p.TripID] = append(byTrip[p.TripID], p.toDomain())
	}

	trips := make([]domain.Trip, len(rows))
	for i, row := range rows {
		trips[i] = row.toDomain(byTrip[row.ID])
	}
	return trips, nil
}

func (r *TripRepo) Get(ctx context.Context, id string) (*domain.Trip, error) {
	var row tripRow
	err := r.db.GetContext(ctx, &row, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTripNotFound
	}
	if err != nil {
		return nil, err
	}

	var points []pointRow
	if err := r.db.SelectContext(ctx, &points,
		`SELECT trip_id, latitude, longitude, recorded_at FROM trip_points WHERE trip_id = $1 ORDER BY id`, id,
	); err != nil {
		return nil, err
	}

	locationPoints := make([]domain.LocationPoint, len(points))
	for i, p := range points {
		locationPoints[i] = p.toDomain()
	}
	trip := row.toDomain(locationPoints)
	return &trip, nil
}

func (r *TripRepo) Update(ctx context.Context, trip *domain.Trip) error {
	var startLat, startLng sql.NullFloat64
	if trip.Start != nil {
		startLat = sql.NullFloat64{Float64: trip.Start.Lat, Valid: true}
		startLng = sql.NullFloat64{Float64: trip.Start.Lng, Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE trips SET title = $2, start_lat = $3, start_lng = $4, dest_lat = $5, dest_lng = $6, place_name = $7, radius_meters = $8, eta_offset_minutes = $9 WHERE id = $1`,
		trip.ID, trip.Title, startLat, startLng, trip.Destination.Lat, trip.Destination.Lng,
		trip.Destination.PlaceName, trip.RadiusMeters, trip.EtaOffsetMinutes,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *TripRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *TripRepo) AppendPoint(ctx context.Context, id string, point domain.LocationPoint, startedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE trips SET started_at = COALESCE(started_at, $2) WHERE id = $1`, id, startedAt)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO trip_points (trip_id, latitude, longitude, recorded_at) VALUES ($1, $2, $3, $4)`,
		id, point.Lat, point.Lng, point.Ts,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *TripRepo) End(ctx context.Context, id string, endedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE trips SET ended_at = COALESCE(ended_at, $2) WHERE id = $1`, id, endedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTripNotFound
	}
	return nil
}

func (row tripRow) toDomain(points []domain.LocationPoint) domain.Trip {
	if points == nil {
		points = []domain.LocationPoint{}
	}
	trip := domain.Trip{
		ID:    row.ID,
		Title: row.Title,
		Destination: domain.Destination{
			Coordinate: domain.Coordinate{Lat: row.DestLat, Lng: row.DestLng},
			PlaceName:  row.PlaceName,
		},
		RadiusMeters:     row.RadiusMeters,
		EtaOffsetMinutes: row.EtaOffsetMinutes,
		LocationPoints:   points,
		CreatedAt:        row.CreatedAt,
	}
	if row.StartLat.Valid && row.StartLng.Valid {
		trip.Start = &domain.Coordinate{Lat: row.StartLat.Float64, Lng: row.StartLng.Float64}
	}
	if row.StartedAt.Valid {
		t := row.StartedAt.Time
		trip.StartedAt = &t
	}
	if row.EndedAt.Valid {
		t := row.EndedAt.Time
		trip.EndedAt = &t
	}
	return trip
}

func (p pointRow) toDomain() domain.LocationPoint {
	return domain.LocationPoint{Lat: p.Latitude, Lng: p.Longitude, Ts: p.RecordedAt}
}
