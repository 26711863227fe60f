package ports

import (
	"context"

	"github.com/samirrijal/cityplanner/internal/core/domain"
)

// Recommender performs one exchange with the external recommendation service.
// points is a snapshot owned by the callee for the duration of the call.
type Recommender interface {
	Recommend(ctx context.Context, requestID string, points []domain.Coordinate) (*domain.Recommendations, error)
}

// EventPublisher publishes planner events to a message broker.
type EventPublisher interface {
	PublishMarkersChanged(ctx context.Context, snap domain.MarkerSnapshot) error
	PublishOutcome(ctx context.Context, outcome domain.Outcome) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
