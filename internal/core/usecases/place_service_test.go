package usecases_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/core/usecases"
)

// --- Mock PlaceRepository ---

type mockPlaceRepo struct {
	calls        atomic.Int32
	findNearbyFn func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Place, error)
}

func (m *mockPlaceRepo) UpsertBatch(ctx context.Context, places []domain.Place) error { return nil }

func (m *mockPlaceRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Place, error) {
	m.calls.Add(1)
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func place(id, name string, lat, lon float64) domain.Place {
	return domain.Place{ID: id, Name: name, Category: "museum", Location: coord(lat, lon)}
}

// --- Tests ---

func TestPlaceService_Recommend_DedupAndOrder(t *testing.T) {
	louvre := place("1", "Louvre", 48.8606, 2.3376)
	orsay := place("2", "Musée d'Orsay", 48.8600, 2.3266)
	notreDame := place("3", "Notre-Dame", 48.8530, 2.3499)

	repo := &mockPlaceRepo{
		findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Place, error) {
			if radius != 1000 || limit != 10 {
				t.Errorf("unexpected search radius=%v limit=%d", radius, limit)
			}
			if lat > 48.855 {
				return []domain.Place{orsay, louvre}, nil
			}
			return []domain.Place{notreDame, louvre}, nil
		},
	}
	svc := usecases.NewPlaceService(repo, nil, usecases.PlaceSearch{RadiusMeters: 1000, Limit: 10})

	got, err := svc.Recommend(context.Background(), []domain.Coordinate{
		coord(48.8605, 2.3370), // near the Louvre
		coord(48.8531, 2.3498), // at Notre-Dame
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 unique places, got %d", len(got))
	}
	if got[0].Name != "Notre-Dame" {
		t.Errorf("expected Notre-Dame first, got %s", got[0].Name)
	}
	for i := 1; i < len(got); i++ {
		if *got[i-1].Distance > *got[i].Distance {
			t.Errorf("places not ordered by distance at %d", i)
		}
	}
}

func TestPlaceService_Recommend_Limit(t *testing.T) {
	repo := &mockPlaceRepo{
		findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Place, error) {
			return []domain.Place{
				place("a", "A", 48.850, 2.350),
				place("b", "B", 48.851, 2.350),
				place("c", "C", 48.852, 2.350),
			}, nil
		},
	}
	svc := usecases.NewPlaceService(repo, nil, usecases.PlaceSearch{Limit: 2})

	got, err := svc.Recommend(context.Background(), []domain.Coordinate{coord(48.850, 2.350)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("expected [a b], got %+v", got)
	}
}

func TestPlaceService_Recommend_NoIDDedupByNameAndPosition(t *testing.T) {
	repo := &mockPlaceRepo{
		findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Place, error) {
			return []domain.Place{place("", "Kiosk", 48.85, 2.35)}, nil
		},
	}
	svc := usecases.NewPlaceService(repo, nil, usecases.PlaceSearch{})

	got, err := svc.Recommend(context.Background(), []domain.Coordinate{coord(48.85, 2.35), coord(48.851, 2.351)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 place, got %d", len(got))
	}
}

func TestPlaceService_Recommend_Cache(t *testing.T) {
	repo := &mockPlaceRepo{
		findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Place, error) {
			return []domain.Place{place("1", "Louvre", 48.8606, 2.3376)}, nil
		},
	}
	svc := usecases.NewPlaceService(repo, newMockCache(), usecases.PlaceSearch{CacheTTL: 60})
	points := []domain.Coordinate{coord(48.8605, 2.3370)}

	for i := 0; i < 3; i++ {
		got, err := svc.Recommend(context.Background(), points)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].Name != "Louvre" {
			t.Fatalf("call %d: unexpected places %+v", i, got)
		}
	}
	if n := repo.calls.Load(); n != 1 {
		t.Errorf("expected 1 repository call, got %d", n)
	}
}

func TestPlaceService_Recommend_CacheDisabled(t *testing.T) {
	repo := &mockPlaceRepo{}
	svc := usecases.NewPlaceService(repo, newMockCache(), usecases.PlaceSearch{})
	points := []domain.Coordinate{coord(48.85, 2.35)}

	_, _ = svc.Recommend(context.Background(), points)
	_, _ = svc.Recommend(context.Background(), points)
	if n := repo.calls.Load(); n != 2 {
		t.Errorf("expected 2 repository calls with zero TTL, got %d", n)
	}
}

func TestPlaceService_Recommend_NoPoints(t *testing.T) {
	svc := usecases.NewPlaceService(&mockPlaceRepo{}, nil, usecases.PlaceSearch{})

	_, err := svc.Recommend(context.Background(), nil)
	if !errors.Is(err, domain.ErrNoMarkers) {
		t.Errorf("expected ErrNoMarkers, got %v", err)
	}
}

func TestPlaceService_Recommend_RepoError(t *testing.T) {
	repo := &mockPlaceRepo{
		findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Place, error) {
			return nil, errors.New("db down")
		},
	}
	svc := usecases.NewPlaceService(repo, nil, usecases.PlaceSearch{})

	if _, err := svc.Recommend(context.Background(), []domain.Coordinate{coord(1, 2)}); err == nil {
		t.Error("expected error")
	}
}

func TestPlaceService_Warm(t *testing.T) {
	repo := &mockPlaceRepo{
		findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Place, error) {
			return []domain.Place{place("1", "Louvre", 48.8606, 2.3376)}, nil
		},
	}
	points := []domain.Coordinate{coord(48.8605, 2.3370), coord(48.853, 2.3499)}

	cached := usecases.NewPlaceService(repo, newMockCache(), usecases.PlaceSearch{CacheTTL: 60})
	if err := cached.Warm(context.Background(), points); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cached.Recommend(context.Background(), points); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := repo.calls.Load(); n != 2 {
		t.Errorf("expected 2 repository calls (warm only), got %d", n)
	}

	repo.calls.Store(0)
	uncached := usecases.NewPlaceService(repo, nil, usecases.PlaceSearch{})
	if err := uncached.Warm(context.Background(), points); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := repo.calls.Load(); n != 0 {
		t.Errorf("warm without cache should not query, got %d calls", n)
	}
}
