package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"routeengine/internal/cache"
	"routeengine/internal/domain"
	"routeengine/internal/domain/models"
	"routeengine/internal/graph"
	"routeengine/internal/importer"
	"routeengine/internal/repositories"
	"routeengine/internal/routing"
)

const (
	stopsCSV = "stopCode,stopName,latitude,longitude\n" +
		"A,Alpha,9.0,76.0\nB,Bravo,9.1,76.1\nC,Charlie,9.2,76.2\n"
	routesCSV = "routeNumber,routeName,startingPoint,endingPoint,totalDistance,estimatedDuration,departureTimes\n" +
		"R1,Alpha - Charlie,Alpha,Charlie,12,30,08:03;09:00\n"
	routeStopsCSV = "routeNumber,stopCode,stopSequence,segmentFare\n" +
		"R1,A,1,\nR1,B,2,10\nR1,C,3,15\n"
)

type fixture struct {
	store  *repositories.MemoryStore
	holder *graph.Holder
	cache  *cache.ResultCache
	imp    ImportService
	graph  GraphService
	search SearchService
	status StatusService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	holder := &graph.Holder{}
	rc := cache.New(cache.Options{TTL: time.Minute, Size: 100})
	fx := fixture{
		store:  store,
		holder: holder,
		cache:  rc,
		imp:    ImportService{Importer: importer.New(store)},
		graph:  GraphService{Store: store, Holder: holder, Cache: rc, BuildTimeout: time.Second},
		search: SearchService{Holder: holder, Finder: routing.NewFinder(routing.Options{MaxTransfers: 3}), Cache: rc, Timeout: time.Second},
		status: StatusService{Holder: holder, Cache: rc},
	}
	ctx := context.Background()
	for _, b := range []struct{ dt, payload string }{
		{"stops", stopsCSV}, {"routes", routesCSV}, {"routeStops", routeStopsCSV},
	} {
		res, err := fx.imp.Import(ctx, b.dt, "csv", []byte(b.payload))
		if err != nil || res.Rejected != 0 {
			t.Fatalf("seed %s: res=%+v err=%v", b.dt, res, err)
		}
	}
	return fx
}

func fareQuery() models.SearchQuery {
	return models.SearchQuery{OriginStopID: "A", DestinationStopID: "C", Preference: models.PreferFare, TimeOfDay: -1, MaxOptions: 3}
}

func TestSearchBeforeBuildIsUnavailable(t *testing.T) {
	fx := newFixture(t)
	if _, _, err := fx.search.Search(context.Background(), fareQuery()); !domain.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if st := fx.status.GraphStatus(); st.Available {
		t.Fatalf("graph should not be available yet: %+v", st)
	}
}

func TestBuildThenSearchScenario(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	report, err := fx.graph.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Version != 1 || report.NodeCount != 3 || report.EdgeCount != 2 {
		t.Fatalf("unexpected report %+v", report)
	}

	res, cached, err := fx.search.Search(ctx, fareQuery())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if cached || len(res.Itineraries) != 1 {
		t.Fatalf("cached=%v itineraries=%d", cached, len(res.Itineraries))
	}
	if it := res.Itineraries[0]; it.TotalFare != 25 || it.TransferCount != 0 {
		t.Fatalf("totalFare=%v transfers=%d, want 25/0", it.TotalFare, it.TransferCount)
	}

	_, cached, _ = fx.search.Search(ctx, fareQuery())
	if !cached {
		t.Fatalf("repeat query should be served from cache")
	}
	if st := fx.status.CacheStats(); st.Size != 1 {
		t.Fatalf("cache size = %d, want 1", st.Size)
	}
}

func TestRebuildBumpsVersionAndClearsCache(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.graph.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	_, _, _ = fx.search.Search(ctx, fareQuery())

	report, err := fx.graph.Rebuild(ctx)
	if err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	if report.Version != 2 {
		t.Fatalf("version = %d, want 2", report.Version)
	}
	if st := fx.status.CacheStats(); st.Size != 0 {
		t.Fatalf("cache should be empty after rebuild, got %+v", st)
	}
	res, cached, _ := fx.search.Search(ctx, fareQuery())
	if cached || res.GraphVersion != 2 {
		t.Fatalf("search after rebuild: cached=%v version=%d", cached, res.GraphVersion)
	}
	st := fx.status.GraphStatus()
	if !st.Available || st.Version != 2 || st.TotalRoutes != 1 || st.LastUpdated == nil {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestConcurrentRebuildConflicts(t *testing.T) {
	fx := newFixture(t)
	release, ok := fx.holder.TryBeginBuild()
	if !ok {
		t.Fatalf("could not claim build slot")
	}
	defer release()

	if _, err := fx.graph.Rebuild(context.Background()); !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

type brokenStore struct {
	repositories.CanonicalStore
}

func (brokenStore) LoadDataset(context.Context) (models.Dataset, error) {
	return models.Dataset{}, errors.New("connection refused")
}

func TestFailedRebuildKeepsPreviousSnapshot(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	if _, err := fx.graph.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	broken := fx.graph
	broken.Store = brokenStore{}
	_, err := broken.Rebuild(ctx)
	be, ok := graph.IsBuildError(err)
	if !ok || be.Reason != graph.ReasonStoreUnavailable {
		t.Fatalf("expected store_unavailable build error, got %v", err)
	}
	if v := fx.status.GraphStatus().Version; v != 1 {
		t.Fatalf("previous snapshot should keep serving, version=%d", v)
	}
}

func TestUnknownStopIsCachedEmptyResult(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	if _, err := fx.graph.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	q := fareQuery()
	q.DestinationStopID = "NOPE"
	res, _, err := fx.search.Search(ctx, q)
	if err != nil || res.EmptyReason != domain.EmptyUnknownStop || len(res.Itineraries) != 0 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestCacheServiceClear(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, _ = fx.graph.Rebuild(ctx)
	_, _, _ = fx.search.Search(ctx, fareQuery())

	CacheService{Cache: fx.cache}.Clear()
	if st := fx.status.CacheStats(); st.Size != 0 {
		t.Fatalf("cache size after clear = %d", st.Size)
	}
}

func TestImportServiceRejectsUnknownFormat(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.imp.Import(context.Background(), "stops", "xml", []byte("x")); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := fx.imp.Import(context.Background(), "fares", "csv", []byte("x")); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDocsServiceJourneySheet(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, _ = fx.graph.Rebuild(ctx)
	res, _, err := fx.search.Search(ctx, fareQuery())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	svc := DocsService{Now: func() time.Time { return time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC) }}
	pdf, filename, err := svc.GenerateJourneySheet(fareQuery(), res, "Alpha", "Charlie")
	if err != nil {
		t.Fatalf("GenerateJourneySheet returned error: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) || filename != "JOURNEY_A_C.pdf" {
		t.Fatalf("unexpected output: len=%d filename=%q", len(pdf), filename)
	}

	empty, _, err := svc.GenerateJourneySheet(fareQuery(), models.SearchResult{EmptyReason: domain.EmptyNoPath}, "", "")
	if err != nil || len(empty) == 0 {
		t.Fatalf("empty result sheet: len=%d err=%v", len(empty), err)
	}
}

func TestSearchUsesExactRequestedMinute(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	if _, err := fx.graph.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	q := fareQuery()
	q.TimeOfDay = 8*60 + 1
	res, _, err := fx.search.Search(ctx, q)
	if err != nil || len(res.Itineraries) != 1 {
		t.Fatalf("08:01 search: res=%+v err=%v", res, err)
	}
	if dep := res.Itineraries[0].Legs[0].DepartureTime; dep != "08:03" {
		t.Fatalf("08:01 search departs %s, want 08:03", dep)
	}

	q.TimeOfDay = 8*60 + 4
	res, cached, err := fx.search.Search(ctx, q)
	if err != nil || cached || len(res.Itineraries) != 1 {
		t.Fatalf("08:04 search: cached=%v res=%+v err=%v", cached, res, err)
	}
	if dep := res.Itineraries[0].Legs[0].DepartureTime; dep != "09:00" {
		t.Fatalf("08:04 search departs %s, want 09:00", dep)
	}
}

func TestStopServiceLookups(t *testing.T) {
	fx := newFixture(t)
	stops := StopService{Holder: fx.holder}
	if _, err := stops.Stop("A"); !domain.IsUnavailable(err) {
		t.Fatalf("lookup before build should be unavailable, got %v", err)
	}
	if _, err := fx.graph.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	st, err := stops.Stop("B")
	if err != nil || st.Name != "Bravo" {
		t.Fatalf("Stop(B) = %+v, %v", st, err)
	}
	if _, err := stops.Stop("ZZ"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	near, err := stops.Nearby(9.1, 76.1, 0.5)
	if err != nil || len(near) != 1 || near[0].StopID != "B" || near[0].DistanceKm != 0 {
		t.Fatalf("Nearby = %+v, %v", near, err)
	}
	all, _ := stops.Nearby(9.1, 76.1, 20)
	if len(all) != 3 || all[0].StopID != "B" {
		t.Fatalf("Nearby 20km = %+v", all)
	}
}
