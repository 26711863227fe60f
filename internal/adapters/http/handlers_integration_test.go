//go:build integration
// +build integration

package http_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/cityplanner/internal/adapters/http"
	"github.com/samirrijal/cityplanner/internal/adapters/postgres"
	"github.com/samirrijal/cityplanner/internal/adapters/recommender"
	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/core/usecases"
	"github.com/samirrijal/cityplanner/internal/pkg/config"
)

// setupTestDB connects to the test database. The schema must be migrated.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("cityplanner-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return db
}

// seedTestPlaces inserts places around the Louvre with ids unique to this run.
func seedTestPlaces(t *testing.T, repo *postgres.PlaceRepo) string {
	suffix := time.Now().Format("20060102150405.000000")
	places := []domain.Place{
		{ID: "test-louvre-" + suffix, Name: "Louvre " + suffix, Category: "museum",
			Location: domain.Coordinate{Latitude: 48.8606, Longitude: 2.3376}},
		{ID: "test-tuileries-" + suffix, Name: "Tuileries " + suffix, Category: "park",
			Location: domain.Coordinate{Latitude: 48.8635, Longitude: 2.3275}},
	}
	if err := repo.UpsertBatch(context.Background(), places); err != nil {
		t.Fatalf("seed places: %v", err)
	}
	return suffix
}

// startRecommender serves the reference recommender on a random local port.
func startRecommender(t *testing.T, places *usecases.PlaceService) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRecommenderRoutes(app, &handler.RecommenderDependencies{
		Places: places,
		Path:   "/api/coordinates",
	})
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return fmt.Sprintf("http://%s", ln.Addr().String())
}

// TestFindNearby_Integration checks the PostGIS radius query.
func TestFindNearby_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	repo := postgres.NewPlaceRepo(db)
	suffix := seedTestPlaces(t, repo)

	places, err := repo.FindNearby(context.Background(), 48.8606, 2.3376, 1000, 50)
	if err != nil {
		t.Fatalf("find nearby: %v", err)
	}

	var found int
	for i, p := range places {
		if p.Distance == nil {
			t.Fatalf("place %s has no distance", p.ID)
		}
		if i > 0 && *places[i-1].Distance > *p.Distance {
			t.Errorf("places not ordered by distance at %d", i)
		}
		if p.ID == "test-louvre-"+suffix || p.ID == "test-tuileries-"+suffix {
			found++
		}
	}
	if found != 2 {
		t.Errorf("expected both seeded places within 1km, found %d", found)
	}

	far, err := repo.FindNearby(context.Background(), 43.263, -2.935, 1000, 50)
	if err != nil {
		t.Fatalf("find nearby: %v", err)
	}
	for _, p := range far {
		if p.ID == "test-louvre-"+suffix {
			t.Error("Louvre should not be near Bilbao")
		}
	}
}

// TestFindActivities_Integration runs the planner against the reference
// recommender backed by the real database, in both payload formats.
func TestFindActivities_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	repo := postgres.NewPlaceRepo(db)
	seedTestPlaces(t, repo)
	baseURL := startRecommender(t, usecases.NewPlaceService(repo, nil, usecases.PlaceSearch{RadiusMeters: 1000, Limit: 20}))

	for _, format := range []string{config.PayloadPoints, config.PayloadCoordinates} {
		t.Run(format, func(t *testing.T) {
			cfg := config.RecommenderConfig{
				BaseURL:       baseURL,
				Path:          "/api/coordinates",
				PayloadFormat: format,
				TimeoutMS:     5000,
			}
			deps := makeDeps(nil)
			deps.Client = usecases.NewRecommendationClient(deps.Store, recommender.NewClient(cfg, "Paris"))
			app := setupApp(deps)

			addMarker(t, app, 48.8606, 2.3376)

			code, body := do(t, app, "POST", "/v1/recommendations", "")
			if code != 200 {
				t.Fatalf("expected 200, got %d: %s", code, body)
			}
			got := decode[handler.OutcomeResponse](t, body)
			if got.Outcome.Kind != string(domain.OutcomeSuccess) {
				t.Fatalf("expected success, got %+v", got.Outcome)
			}
			if len(deps.Store.ActivityMarkers()) < 2 {
				t.Errorf("expected seeded places as activities, got %d", len(deps.Store.ActivityMarkers()))
			}
		})
	}
}
