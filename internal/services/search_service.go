package services

import (
	"context"
	"fmt"
	"time"

	"routeengine/internal/cache"
	"routeengine/internal/domain"
	"routeengine/internal/domain/models"
	"routeengine/internal/graph"
	"routeengine/internal/metrics"
	"routeengine/internal/routing"
	"routeengine/internal/utils"
)

// SearchService answers itinerary queries through the result cache.
type SearchService struct {
	Holder    *graph.Holder
	Finder    *routing.Finder
	Cache     *cache.ResultCache
	Timeout   time.Duration
	RequestID string
}

// Search returns ranked itineraries. cached reports whether the result came from the cache.
func (s SearchService) Search(ctx context.Context, q models.SearchQuery) (models.SearchResult, bool, error) {
	start := time.Now()
	if s.Holder.Current() == nil {
		metrics.SearchTotal.WithLabelValues(string(q.Preference), "unavailable").Inc()
		return models.SearchResult{}, false, domain.UnavailableError{Resource: "route graph"}
	}

	sig := cache.SignatureOf(q)

	res, hit, err := s.Cache.GetOrCompute(ctx, sig, func(ctx context.Context) (models.SearchResult, error) {
		snap := s.Holder.Current()
		if snap == nil {
			return models.SearchResult{}, domain.UnavailableError{Resource: "route graph"}
		}
		if s.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.Timeout)
			defer cancel()
		}
		return s.Finder.Search(ctx, snap, q)
	})

	metrics.SearchDuration.WithLabelValues(string(q.Preference)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchTotal.WithLabelValues(string(q.Preference), "error").Inc()
		utils.LogEvent(s.RequestID, "search", "failed", fmt.Sprintf("key=%s err=%v", sig, err))
		return models.SearchResult{}, false, err
	}
	if hit {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}

	outcome := "found"
	if res.EmptyReason != domain.EmptyNone {
		outcome = string(res.EmptyReason)
	}
	metrics.SearchTotal.WithLabelValues(string(q.Preference), outcome).Inc()
	utils.LogEvent(s.RequestID, "search", "done", fmt.Sprintf("key=%s options=%d cached=%t outcome=%s",
		sig, len(res.Itineraries), hit, outcome))
	return res, hit, nil
}
