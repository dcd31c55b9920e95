package services

import (
	"fmt"
	"time"

	"routeengine/internal/cache"
	"routeengine/internal/graph"
	"routeengine/internal/metrics"
	"routeengine/internal/utils"
)

type GraphStatus struct {
	Available      bool                  `json:"available"`
	Version        int64                 `json:"version"`
	LastUpdated    *time.Time            `json:"lastUpdated"`
	NodeCount      int                   `json:"nodeCount"`
	EdgeCount      int                   `json:"edgeCount"`
	BuildTimeMs    int64                 `json:"buildTimeMs"`
	TotalStops     int                   `json:"totalStops"`
	TotalRoutes    int                   `json:"totalRoutes"`
	ExcludedRoutes []graph.ExcludedRoute `json:"excludedRoutes"`
}

// StatusService reports on the live snapshot and cache without changing either.
type StatusService struct {
	Holder *graph.Holder
	Cache  *cache.ResultCache
}

func (s StatusService) GraphStatus() GraphStatus {
	snap := s.Holder.Current()
	if snap == nil {
		return GraphStatus{ExcludedRoutes: []graph.ExcludedRoute{}}
	}
	built := snap.BuiltAt
	return GraphStatus{
		Available:      true,
		Version:        snap.Version,
		LastUpdated:    &built,
		NodeCount:      snap.NodeCount,
		EdgeCount:      snap.EdgeCount,
		BuildTimeMs:    snap.BuildTimeMs,
		TotalStops:     len(snap.Stops),
		TotalRoutes:    len(snap.Lines),
		ExcludedRoutes: snap.Excluded,
	}
}

func (s StatusService) CacheStats() cache.Stats {
	return s.Cache.Stats()
}

// CacheService clears the result cache on operator request.
type CacheService struct {
	Cache     *cache.ResultCache
	RequestID string
}

func (s CacheService) Clear() uint64 {
	gen := s.Cache.InvalidateAll()
	metrics.CacheInvalidations.Inc()
	utils.LogEvent(s.RequestID, "cache", "cleared", fmt.Sprintf("generation=%d", gen))
	return gen
}
