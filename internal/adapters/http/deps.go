package http

import (
	"context"

	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/core/usecases"
	"github.com/samirrijal/cityplanner/internal/mapview"
	"github.com/samirrijal/cityplanner/internal/pkg/config"
)

// Pinger is a backing service the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds everything the planner handlers need.
type Dependencies struct {
	Store       *usecases.MarkerStore
	Client      *usecases.RecommendationClient
	City        config.CityConfig
	Map         config.MapConfig
	Styles      domain.StyleRegistry
	Recommender config.RecommenderConfig

	// BaseCtx parents recommendation tasks so that shutdown cancels them.
	// Defaults to context.Background().
	BaseCtx context.Context

	// Checks are pinged by /v1/ready. Optional services are only listed when
	// configured.
	Checks map[string]Pinger
}

func (d *Dependencies) baseCtx() context.Context {
	if d.BaseCtx != nil {
		return d.BaseCtx
	}
	return context.Background()
}

// View builds the current map view.
func (d *Dependencies) View() mapview.View {
	return mapview.Build(d.Store.Snapshot(), d.City.BaseMarker(), d.Styles, d.Client.Status())
}

// RecommenderDependencies holds what the reference recommendation service needs.
type RecommenderDependencies struct {
	Places *usecases.PlaceService
	Path   string
	Checks map[string]Pinger
}
