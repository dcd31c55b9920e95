package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"routeengine/internal/cache"
	"routeengine/internal/domain"
	"routeengine/internal/graph"
	"routeengine/internal/metrics"
	"routeengine/internal/repositories"
	"routeengine/internal/utils"
)

// BuildReport describes a freshly published snapshot.
type BuildReport struct {
	Version         int64                 `json:"version"`
	NodeCount       int                   `json:"nodeCount"`
	EdgeCount       int                   `json:"edgeCount"`
	BuildTimeMs     int64                 `json:"buildTimeMs"`
	BuiltAt         time.Time             `json:"builtAt"`
	ExcludedRoutes  []graph.ExcludedRoute `json:"excludedRoutes"`
	CacheGeneration uint64                `json:"cacheGeneration"`
}

// GraphService rebuilds the route graph from the canonical store and swaps it in.
type GraphService struct {
	Store        repositories.CanonicalStore
	Holder       *graph.Holder
	Cache        *cache.ResultCache
	Options      graph.Options
	BuildTimeout time.Duration
	RequestID    string
}

// Rebuild runs a full build. A concurrent call is rejected with a ConflictError;
// on failure the previous snapshot keeps serving.
func (s GraphService) Rebuild(ctx context.Context) (BuildReport, error) {
	release, ok := s.Holder.TryBeginBuild()
	if !ok {
		metrics.BuildTotal.WithLabelValues("conflict").Inc()
		return BuildReport{}, domain.ConflictError{Resource: "graph build", Msg: "a build is already in progress"}
	}
	defer release()

	if s.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.BuildTimeout)
		defer cancel()
	}

	start := time.Now()
	ds, err := s.Store.LoadDataset(ctx)
	if err != nil {
		reason := graph.ReasonStoreUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			reason = graph.ReasonTimeout
		}
		metrics.BuildTotal.WithLabelValues(reason).Inc()
		utils.LogEvent(s.RequestID, "graph", "build_failed", fmt.Sprintf("reason=%s err=%v", reason, err))
		return BuildReport{}, graph.BuildError{Reason: reason, Msg: "could not load canonical data", Err: err}
	}

	snap, err := graph.Compile(ctx, ds, s.Holder.NextVersion(), s.Options)
	if err != nil {
		reason := "error"
		if be, ok := graph.IsBuildError(err); ok {
			reason = be.Reason
		}
		metrics.BuildTotal.WithLabelValues(reason).Inc()
		utils.LogEvent(s.RequestID, "graph", "build_failed", err.Error())
		return BuildReport{}, err
	}

	s.Holder.Publish(snap)
	gen := s.Cache.InvalidateAll()
	metrics.CacheInvalidations.Inc()

	metrics.BuildTotal.WithLabelValues("ok").Inc()
	metrics.BuildDuration.Observe(time.Since(start).Seconds())
	metrics.GraphVersion.Set(float64(snap.Version))
	metrics.GraphEdges.Set(float64(snap.EdgeCount))

	utils.LogEvent(s.RequestID, "graph", "build_ok", fmt.Sprintf("version=%d nodes=%d edges=%d excluded=%d build_ms=%d",
		snap.Version, snap.NodeCount, snap.EdgeCount, len(snap.Excluded), snap.BuildTimeMs))

	return BuildReport{
		Version:         snap.Version,
		NodeCount:       snap.NodeCount,
		EdgeCount:       snap.EdgeCount,
		BuildTimeMs:     snap.BuildTimeMs,
		BuiltAt:         snap.BuiltAt,
		ExcludedRoutes:  snap.Excluded,
		CacheGeneration: gen,
	}, nil
}
