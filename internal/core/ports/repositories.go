package ports

import (
	"context"

	"github.com/samirrijal/cityplanner/internal/core/domain"
)

// PlaceRepository persists points of interest for the reference recommender.
type PlaceRepository interface {
	UpsertBatch(ctx context.Context, places []domain.Place) error
	// FindNearby returns places within radiusMeters of the point, nearest first.
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Place, error)
}
