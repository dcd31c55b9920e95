package importer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"routeengine/internal/domain"
	"routeengine/internal/domain/models"
	"routeengine/internal/repositories"
)

func TestImportStopsCSVMissingLatitude(t *testing.T) {
	store := repositories.NewMemoryStore()
	im := New(store)

	csv := "stopCode,stopName,latitude,longitude\n" +
		"TVM,Thampanoor,8.4875,76.9525\n" +
		"KLM,Kollam,,76.6141\n" +
		"ALP,Alappuzha,9.4981,76.3388\n"

	res, err := im.Import(context.Background(), domain.DataTypeStops, domain.FormatCSV, []byte(csv))
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if res.Accepted != 2 || res.Rejected != 1 {
		t.Fatalf("accepted=%d rejected=%d, want 2/1", res.Accepted, res.Rejected)
	}
	if res.Errors[0].RowIndex != 2 || !strings.Contains(res.Errors[0].Reason, "latitude") {
		t.Fatalf("unexpected row error: %+v", res.Errors[0])
	}
	if res.BatchID == "" {
		t.Fatalf("batch id missing")
	}

	ds, _ := store.LoadDataset(context.Background())
	if len(ds.Stops) != 2 {
		t.Fatalf("store should hold 2 stops, got %d", len(ds.Stops))
	}
}

func TestImportStopsRejectsBadCoordinatesAndDuplicates(t *testing.T) {
	im := New(repositories.NewMemoryStore())
	csv := "code,name,lat,lng\n" +
		"A,Alpha,91,76\n" +
		"B,Bravo,nine,76\n" +
		"C,Charlie,9,76\n" +
		"C,Charlie Again,9,76\n"

	res, err := im.Import(context.Background(), domain.DataTypeStops, domain.FormatCSV, []byte(csv))
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if res.Accepted != 1 || res.Rejected != 3 {
		t.Fatalf("accepted=%d rejected=%d, want 1/3", res.Accepted, res.Rejected)
	}
	if !strings.Contains(res.Errors[2].Reason, "duplicate stopCode C") {
		t.Fatalf("expected duplicate reason, got %q", res.Errors[2].Reason)
	}
}

func TestImportRoutesJSONEnvelope(t *testing.T) {
	store := repositories.NewMemoryStore()
	im := New(store)
	payload := `{"routes": [
		{"routeNumber": "KL-15-101", "routeName": "TVM - KLM Fast", "startingPoint": "Thampanoor",
		 "endingPoint": "Kollam", "totalDistance": 71.5, "farePerKm": 1.1, "departureTimes": ["06:00", "07:30"]},
		{"routeNumber": "KL-15-102", "routeName": "Broken", "startingPoint": "A", "endingPoint": "B",
		 "totalDistance": "far"},
		"not a row"
	]}`

	res, err := im.Import(context.Background(), domain.DataTypeRoutes, domain.FormatJSON, []byte(payload))
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if res.Accepted != 1 || res.Rejected != 2 {
		t.Fatalf("accepted=%d rejected=%d, want 1/2", res.Accepted, res.Rejected)
	}
	if !strings.Contains(res.Errors[0].Reason, "totalDistance") {
		t.Fatalf("expected totalDistance reason, got %q", res.Errors[0].Reason)
	}

	ds, _ := store.LoadDataset(context.Background())
	r := ds.Routes[0]
	if r.ID != "KL-15-101" || r.FarePerKm != 1.1 || len(r.DepartureTimes) != 2 || r.DepartureTimes[1] != 450 {
		t.Fatalf("route not normalized: %+v", r)
	}
}

func TestImportRouteStopsDuplicateSequence(t *testing.T) {
	store := repositories.NewMemoryStore()
	im := New(store)
	csv := "routeNumber,stopCode,stopSequence,distanceFromStart,fareFromStart,estimatedDeparture\n" +
		"R1,A,1,0,0,06:00\n" +
		"R1,B,2,5,10,\n" +
		"R1,C,2,9,25,\n" +
		"R1,D,x,9,25,\n"

	res, err := im.Import(context.Background(), domain.DataTypeRouteStops, domain.FormatCSV, []byte(csv))
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if res.Accepted != 2 || res.Rejected != 2 {
		t.Fatalf("accepted=%d rejected=%d, want 2/2", res.Accepted, res.Rejected)
	}
	ds, _ := store.LoadDataset(context.Background())
	if ds.RouteStops[0].DepartureMin == nil || *ds.RouteStops[0].DepartureMin != 360 {
		t.Fatalf("estimatedDeparture not parsed")
	}
}

func TestImportRejectsWholeBatchProblems(t *testing.T) {
	im := New(repositories.NewMemoryStore())
	ctx := context.Background()

	if _, err := im.Import(ctx, domain.DataTypeStops, domain.FormatCSV, nil); !domain.IsValidation(err) {
		t.Fatalf("empty payload should be a validation error, got %v", err)
	}
	if _, err := im.Import(ctx, domain.DataTypeStops, domain.FormatJSON, []byte(`{"x":1}`)); !domain.IsValidation(err) {
		t.Fatalf("json without rows should be a validation error, got %v", err)
	}
	if _, err := im.Import(ctx, domain.DataType("trips"), domain.FormatCSV, []byte("a\n1")); !domain.IsValidation(err) {
		t.Fatalf("unknown data type should be a validation error, got %v", err)
	}
}

type failingStore struct {
	repositories.CanonicalStore
}

func (failingStore) UpsertStops(context.Context, []models.Stop) error {
	return errors.New("disk full")
}

func TestImportStoreFailureIsInternal(t *testing.T) {
	im := New(failingStore{})
	_, err := im.Import(context.Background(), domain.DataTypeStops, domain.FormatCSV,
		[]byte("stopCode,stopName,latitude,longitude\nA,Alpha,9,76\n"))
	if !domain.IsInternal(err) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestImportConcurrentBatchesSameType(t *testing.T) {
	store := repositories.NewMemoryStore()
	im := New(store)
	batches := []string{
		"stopCode,stopName,latitude,longitude\nA,Alpha,9,76\nB,Bravo,9.1,76.1\n",
		"stopCode,stopName,latitude,longitude\nC,Charlie,9.2,76.2\n",
		"stopCode,stopName,latitude,longitude\nD,Delta,9.3,76.3\nE,Echo,9.4,76.4\n",
	}

	var wg sync.WaitGroup
	for _, b := range batches {
		wg.Add(1)
		go func(payload string) {
			defer wg.Done()
			if _, err := im.Import(context.Background(), domain.DataTypeStops, domain.FormatCSV, []byte(payload)); err != nil {
				t.Errorf("Import: %v", err)
			}
		}(b)
	}
	wg.Wait()

	ds, _ := store.LoadDataset(context.Background())
	if len(ds.Stops) != 5 {
		t.Fatalf("expected 5 stops after concurrent batches, got %d", len(ds.Stops))
	}
}
