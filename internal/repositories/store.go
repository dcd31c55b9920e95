package repositories

import (
	"context"

	"routeengine/internal/domain/models"
)

// CanonicalStore persists imported network rows and hands the full set to graph builds.
type CanonicalStore interface {
	UpsertStops(ctx context.Context, stops []models.Stop) error
	UpsertRoutes(ctx context.Context, routes []models.Route) error
	// ReplaceRouteStops swaps the full stop list of every route present in rows.
	ReplaceRouteStops(ctx context.Context, rows []models.RouteStop) error
	LoadDataset(ctx context.Context) (models.Dataset, error)
}

func distinctRouteNumbers(rows []models.RouteStop) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0)
	for _, r := range rows {
		if _, ok := seen[r.RouteNumber]; ok {
			continue
		}
		seen[r.RouteNumber] = struct{}{}
		out = append(out, r.RouteNumber)
	}
	return out
}
