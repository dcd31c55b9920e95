package repositories

import (
	"context"
	"sort"
	"sync"

	"routeengine/internal/domain/models"
)

// MemoryStore keeps canonical rows in process. Used when STORE_DRIVER=memory and in tests.
type MemoryStore struct {
	mu         sync.RWMutex
	stops      map[string]models.Stop
	routes     map[string]models.Route
	routeStops map[string][]models.RouteStop
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stops:      map[string]models.Stop{},
		routes:     map[string]models.Route{},
		routeStops: map[string][]models.RouteStop{},
	}
}

func (s *MemoryStore) UpsertStops(ctx context.Context, stops []models.Stop) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range stops {
		s.stops[st.Code] = st
	}
	return nil
}

func (s *MemoryStore) UpsertRoutes(ctx context.Context, routes []models.Route) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range routes {
		r.DepartureTimes = append([]int(nil), r.DepartureTimes...)
		s.routes[r.Number] = r
	}
	return nil
}

func (s *MemoryStore) ReplaceRouteStops(ctx context.Context, rows []models.RouteStop) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	grouped := make(map[string][]models.RouteStop)
	for _, r := range rows {
		grouped[r.RouteNumber] = append(grouped[r.RouteNumber], r)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for number, list := range grouped {
		s.routeStops[number] = list
	}
	return nil
}

func (s *MemoryStore) LoadDataset(ctx context.Context) (models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return models.Dataset{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ds models.Dataset
	for _, st := range s.stops {
		ds.Stops = append(ds.Stops, st)
	}
	for _, r := range s.routes {
		r.DepartureTimes = append([]int(nil), r.DepartureTimes...)
		ds.Routes = append(ds.Routes, r)
	}
	for _, list := range s.routeStops {
		ds.RouteStops = append(ds.RouteStops, list...)
	}

	sort.Slice(ds.Stops, func(i, j int) bool { return ds.Stops[i].Code < ds.Stops[j].Code })
	sort.Slice(ds.Routes, func(i, j int) bool { return ds.Routes[i].Number < ds.Routes[j].Number })
	sort.Slice(ds.RouteStops, func(i, j int) bool {
		a, b := ds.RouteStops[i], ds.RouteStops[j]
		if a.RouteNumber != b.RouteNumber {
			return a.RouteNumber < b.RouteNumber
		}
		return a.StopSequence < b.StopSequence
	})
	return ds, nil
}
