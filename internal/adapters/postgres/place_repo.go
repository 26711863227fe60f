package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/pkg/geospatial"
)

// PlaceRepo implements ports.PlaceRepository with pgx.
type PlaceRepo struct {
	db *DB
}

// NewPlaceRepo creates a new PlaceRepo.
func NewPlaceRepo(db *DB) *PlaceRepo {
	return &PlaceRepo{db: db}
}

const upsertPlaceSQL = `
	INSERT INTO places (place_id, name, category, description, location)
	VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography)
	ON CONFLICT (place_id) DO UPDATE
	SET name = EXCLUDED.name, category = EXCLUDED.category,
	    description = EXCLUDED.description, location = EXCLUDED.location,
	    updated_at = now()
`

// UpsertBatch inserts or updates many places using pgx.Batch.
func (r *PlaceRepo) UpsertBatch(ctx context.Context, places []domain.Place) error {
	if len(places) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range places {
		batch.Queue(upsertPlaceSQL, p.ID, p.Name, p.Category, p.Description,
			p.Location.Longitude, p.Location.Latitude)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, p := range places {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert place %s: %w", p.ID, err)
		}
	}
	return nil
}

// FindNearby returns places within radiusMeters using PostGIS ST_DWithin, nearest
// first. The bounding box lets the planner use the GiST index before the exact
// distance check.
func (r *PlaceRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Place, error) {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(lat, lon, radiusMeters)

	rows, err := r.db.Pool.Query(ctx, `
		SELECT place_id, name, COALESCE(category, ''), COALESCE(description, ''),
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) as distance
		FROM places
		WHERE location && ST_MakeEnvelope($5, $6, $7, $8, 4326)::geography
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lon, lat, radiusMeters, limit, minLon, minLat, maxLon, maxLat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var places []domain.Place
	for rows.Next() {
		var p domain.Place
		var dist float64
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Category, &p.Description,
			&p.Location.Latitude, &p.Location.Longitude,
			&dist,
		); err != nil {
			return nil, err
		}
		p.Distance = &dist
		places = append(places, p)
	}
	return places, rows.Err()
}

// Count returns the number of stored places.
func (r *PlaceRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM places`).Scan(&n)
	return n, err
}
