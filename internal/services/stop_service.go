package services

import (
	"fmt"
	"math"
	"sort"

	"routeengine/internal/domain"
	"routeengine/internal/domain/models"
	"routeengine/internal/graph"
	"routeengine/internal/utils"
)

type NearbyStop struct {
	StopID     string  `json:"stopId"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	City       string  `json:"city,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	DistanceKm float64 `json:"distance"`
}

// StopService answers stop lookups against the live snapshot.
type StopService struct {
	Holder    *graph.Holder
	RequestID string
}

func (s StopService) snapshot() (*graph.Snapshot, error) {
	snap := s.Holder.Current()
	if snap == nil {
		return nil, domain.UnavailableError{Resource: "route graph"}
	}
	return snap, nil
}

// Stop returns the graph node for id.
func (s StopService) Stop(id string) (models.Stop, error) {
	snap, err := s.snapshot()
	if err != nil {
		return models.Stop{}, err
	}
	st, ok := snap.Stops[id]
	if !ok {
		return models.Stop{}, domain.NotFoundError{Resource: fmt.Sprintf("stop %s", id)}
	}
	return st, nil
}

// Nearby lists stops within radiusKm of the point, closest first.
func (s StopService) Nearby(lat, lng, radiusKm float64) ([]NearbyStop, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	out := []NearbyStop{}
	for id, st := range snap.Stops {
		d := utils.HaversineKm(lat, lng, st.Lat, st.Lng)
		if d > radiusKm {
			continue
		}
		out = append(out, NearbyStop{
			StopID:     id,
			Code:       st.Code,
			Name:       st.Name,
			City:       st.City,
			Latitude:   st.Lat,
			Longitude:  st.Lng,
			DistanceKm: d,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].StopID < out[j].StopID
	})
	for i := range out {
		out[i].DistanceKm = math.Round(out[i].DistanceKm*1000) / 1000
	}
	utils.LogEvent(s.RequestID, "stops", "nearby", fmt.Sprintf("lat=%.5f lng=%.5f radius_km=%.1f found=%d", lat, lng, radiusKm, len(out)))
	return out, nil
}
