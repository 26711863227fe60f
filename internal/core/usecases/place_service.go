package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/core/ports"
	"github.com/samirrijal/cityplanner/internal/pkg/geospatial"
	"github.com/samirrijal/cityplanner/internal/pkg/metrics"
)

// maxPointLookups bounds concurrent repository lookups per request.
const maxPointLookups = 4

// PlaceSearch tunes how places are matched to submitted points.
type PlaceSearch struct {
	RadiusMeters float64
	Limit        int
	CacheTTL     int // seconds; 0 disables caching
}

// PlaceService answers recommendation requests for the reference recommender.
type PlaceService struct {
	places ports.PlaceRepository
	cache  ports.CacheService
	search PlaceSearch
}

// NewPlaceService creates a new PlaceService. cache may be nil.
func NewPlaceService(places ports.PlaceRepository, cache ports.CacheService, search PlaceSearch) *PlaceService {
	if search.Limit <= 0 {
		search.Limit = 20
	}
	if search.RadiusMeters <= 0 {
		search.RadiusMeters = 1500
	}
	return &PlaceService{places: places, cache: cache, search: search}
}

// Recommend returns places near any of points, each once, ordered by distance to
// the closest point and capped at the configured limit.
func (s *PlaceService) Recommend(ctx context.Context, points []domain.Coordinate) ([]domain.Place, error) {
	if len(points) == 0 {
		return nil, domain.ErrNoMarkers
	}

	found, err := s.lookup(ctx, points)
	if err != nil {
		return nil, err
	}

	pairs := latLonPairs(points)
	out := make([]domain.Place, 0, len(found))
	for _, pl := range found {
		_, d := geospatial.Nearest(pl.Location.Latitude, pl.Location.Longitude, pairs)
		pl.Distance = &d
		out = append(out, pl)
	}
	sort.Slice(out, func(i, j int) bool {
		if *out[i].Distance != *out[j].Distance {
			return *out[i].Distance < *out[j].Distance
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > s.search.Limit {
		out = out[:s.search.Limit]
	}

	metrics.PlacesServed.Observe(float64(len(out)))
	return out, nil
}

// Warm fills the nearby cache for points so a following Recommend is served from
// cache. It is a no-op when caching is disabled.
func (s *PlaceService) Warm(ctx context.Context, points []domain.Coordinate) error {
	if s.cache == nil || s.search.CacheTTL <= 0 || len(points) == 0 {
		return nil
	}
	_, err := s.lookup(ctx, points)
	return err
}

func (s *PlaceService) lookup(ctx context.Context, points []domain.Coordinate) (map[string]domain.Place, error) {
	var (
		mu    sync.Mutex
		found = make(map[string]domain.Place)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPointLookups)
	for _, p := range points {
		p := p
		g.Go(func() error {
			nearby, err := s.nearby(gctx, p)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, pl := range nearby {
				found[placeKey(pl)] = pl
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("find nearby places: %w", err)
	}
	return found, nil
}

func (s *PlaceService) nearby(ctx context.Context, p domain.Coordinate) ([]domain.Place, error) {
	cacheKey := fmt.Sprintf("places:nearby:%.4f:%.4f:%.0f:%d",
		p.Latitude, p.Longitude, s.search.RadiusMeters, s.search.Limit)
	useCache := s.cache != nil && s.search.CacheTTL > 0

	if useCache {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var places []domain.Place
			if err := json.Unmarshal(data, &places); err == nil {
				metrics.CacheHits.WithLabelValues("places_nearby").Inc()
				return places, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("places_nearby").Inc()
	}

	places, err := s.places.FindNearby(ctx, p.Latitude, p.Longitude, s.search.RadiusMeters, s.search.Limit)
	if err != nil {
		return nil, err
	}

	if useCache {
		if data, err := json.Marshal(places); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.search.CacheTTL)
		}
	}
	return places, nil
}

func placeKey(p domain.Place) string {
	if p.ID != "" {
		return p.ID
	}
	return fmt.Sprintf("%s@%.6f,%.6f", p.Name, p.Location.Latitude, p.Location.Longitude)
}

func latLonPairs(points []domain.Coordinate) [][2]float64 {
	out := make([][2]float64, len(points))
	for i, p := range points {
		out[i] = [2]float64{p.Latitude, p.Longitude}
	}
	return out
}
