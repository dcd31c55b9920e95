package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"routeengine/internal/cache"
	intconfig "routeengine/internal/config"
	"routeengine/internal/graph"
	h "routeengine/internal/http/handlers"
	"routeengine/internal/importer"
	"routeengine/internal/repositories"
	"routeengine/internal/routing"
	"routeengine/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "router-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	engine := intconfig.DefaultEngine()
	store := repositories.NewMemoryStore()
	holder := &graph.Holder{}
	rc := cache.New(cache.Options{TTL: time.Minute, Size: 100})

	fr := &h.FastestRoute{
		Graph:  services.GraphService{Store: store, Holder: holder, Cache: rc, BuildTimeout: time.Second},
		Search: services.SearchService{Holder: holder, Finder: routing.NewFinder(routing.Options{MaxTransfers: engine.MaxTransfers, LabelsPerStop: engine.LabelsPerStop}), Cache: rc, Timeout: time.Second},
		Import: services.ImportService{Importer: importer.New(store)},
		Status: services.StatusService{Holder: holder, Cache: rc},
		Cache:  services.CacheService{Cache: rc},
		Docs:   services.DocsService{},
		Stops:  services.StopService{Holder: holder},
		Engine: engine,
	}
	return NewRouter(intconfig.Env{JWTSecret: testSecret}, fr)
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + s
}

func do(t *testing.T, r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, r *gin.Engine, auth, dataType, filename, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte(body))
	if dataType != "" {
		_ = mw.WriteField("dataType", dataType)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/fastest-route/import-data", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return do(t, r, req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func seed(t *testing.T, r *gin.Engine) {
	t.Helper()
	admin := bearer(t, "admin")
	batches := []struct{ dt, name, body string }{
		{"stops", "stops.csv", "stopCode,stopName,latitude,longitude\nA,Alpha,9.0,76.0\nB,Bravo,9.1,76.1\nC,Charlie,9.2,76.2\n"},
		{"routes", "routes.csv", "routeNumber,routeName,startingPoint,endingPoint,totalDistance,estimatedDuration\nR1,Alpha - Charlie,Alpha,Charlie,12,30\n"},
		{"routeStops", "route_stops.csv", "routeNumber,stopCode,stopSequence,segmentFare\nR1,A,1,\nR1,B,2,10\nR1,C,3,15\n"},
	}
	for _, b := range batches {
		if w := upload(t, r, admin, b.dt, b.name, b.body); w.Code != http.StatusOK {
			t.Fatalf("seed %s: status %d body %s", b.dt, w.Code, w.Body.String())
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/api/fastest-route/build-graph", nil)
	req.Header.Set("Authorization", admin)
	if w := do(t, r, req); w.Code != http.StatusOK {
		t.Fatalf("build-graph: status %d body %s", w.Code, w.Body.String())
	}
}

func TestOptionsBeforeBuildIsUnavailable(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/options?originStopId=A&destinationStopId=C", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", w.Code)
	}
	if body := decode(t, w); body["code"] != "graph_unavailable" {
		t.Fatalf("unexpected body %v", body)
	}

	w = do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/graph-status", nil))
	data := decode(t, w)["data"].(map[string]any)
	if w.Code != http.StatusOK || data["available"] != false {
		t.Fatalf("graph-status before build: %d %v", w.Code, data)
	}
}

func TestFareScenario(t *testing.T) {
	r := newTestRouter(t)
	seed(t, r)

	url := "/api/fastest-route/options?originStopId=A&destinationStopId=C&preference=fare"
	w := do(t, r, httptest.NewRequest(http.MethodGet, url, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("first query should miss the cache")
	}
	body := decode(t, w)
	routes := body["routes"].([]any)
	if len(routes) != 1 || body["totalOptions"].(float64) != 1 {
		t.Fatalf("unexpected routes %v", body)
	}
	first := routes[0].(map[string]any)
	if first["totalFare"].(float64) != 25 || first["transferCount"].(float64) != 0 {
		t.Fatalf("itinerary %v", first)
	}

	w = do(t, r, httptest.NewRequest(http.MethodGet, url, nil))
	if w.Header().Get("X-Cache") != "HIT" || decode(t, w)["cached"] != true {
		t.Fatalf("repeat query should hit the cache")
	}
}

func TestUnknownStopIsEmptyOK(t *testing.T) {
	r := newTestRouter(t)
	seed(t, r)

	w := do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/options?originStopId=A&destinationStopId=ZZ", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := decode(t, w)
	if body["emptyReason"] != "UNKNOWN_STOP" || len(body["routes"].([]any)) != 0 {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestOptionsValidation(t *testing.T) {
	r := newTestRouter(t)
	seed(t, r)

	cases := []struct{ name, query, field string }{
		{"missing origin", "destinationStopId=C", "originStopId"},
		{"missing destination", "originStopId=A", "destinationStopId"},
		{"same stops", "originStopId=A&destinationStopId=A", "destinationStopId"},
		{"bad preference", "originStopId=A&destinationStopId=C&preference=cheapest", "preference"},
		{"bad time", "originStopId=A&destinationStopId=C&timeOfDay=25:00", "timeOfDay"},
		{"too many options", "originStopId=A&destinationStopId=C&maxOptions=11", "maxOptions"},
		{"zero options", "originStopId=A&destinationStopId=C&maxOptions=0", "maxOptions"},
	}
	for _, tc := range cases {
		w := do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/options?"+tc.query, nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", tc.name, w.Code)
		}
		body := decode(t, w)
		details, _ := body["details"].(map[string]any)
		if body["code"] != "validation_error" || details["field"] != tc.field {
			t.Fatalf("%s: unexpected body %v", tc.name, body)
		}
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, httptest.NewRequest(http.MethodPost, "/api/fastest-route/build-graph", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous build: status %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/fastest-route/cache", nil)
	req.Header.Set("Authorization", bearer(t, "passenger"))
	if w := do(t, r, req); w.Code != http.StatusForbidden {
		t.Fatalf("passenger clear cache: status %d, want 403", w.Code)
	}

	if w := upload(t, r, "", "stops", "stops.csv", "stopCode\nA\n"); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous import: status %d, want 401", w.Code)
	}
}

func TestBuildWithoutDataFails(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/fastest-route/build-graph", nil)
	req.Header.Set("Authorization", bearer(t, "admin"))
	w := do(t, r, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422 body %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["code"] != "build_failed" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestImportRejectsRowMissingLatitude(t *testing.T) {
	r := newTestRouter(t)
	w := upload(t, r, bearer(t, "admin"), "stops", "stops.csv",
		"stopCode,stopName,latitude,longitude\nA,Alpha,9.0,76.0\nX,NoLat,,76.5\n")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	data := decode(t, w)["data"].(map[string]any)
	if data["accepted"].(float64) != 1 || data["rejected"].(float64) != 1 {
		t.Fatalf("unexpected result %v", data)
	}
	errs := data["errors"].([]any)
	if len(errs) != 1 {
		t.Fatalf("errors %v", errs)
	}
}

func TestImportValidatesFields(t *testing.T) {
	r := newTestRouter(t)
	admin := bearer(t, "admin")

	if w := upload(t, r, admin, "", "stops.csv", "stopCode\nA\n"); w.Code != http.StatusBadRequest {
		t.Fatalf("missing dataType: status %d", w.Code)
	}
	if w := upload(t, r, admin, "stops", "stops.xml", "<a/>"); w.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format: status %d", w.Code)
	}
}

func TestClearCacheThenStatsReportsEmpty(t *testing.T) {
	r := newTestRouter(t)
	seed(t, r)
	admin := bearer(t, "admin")

	_ = do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/options?originStopId=A&destinationStopId=C", nil))

	req := httptest.NewRequest(http.MethodGet, "/api/fastest-route/cache-stats", nil)
	req.Header.Set("Authorization", admin)
	data := decode(t, do(t, r, req))["data"].(map[string]any)
	if data["size"].(float64) != 1 {
		t.Fatalf("cache-stats before clear %v", data)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/fastest-route/cache", nil)
	req.Header.Set("Authorization", admin)
	if w := do(t, r, req); w.Code != http.StatusOK {
		t.Fatalf("clear cache: status %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/fastest-route/cache-stats", nil)
	req.Header.Set("Authorization", admin)
	data = decode(t, do(t, r, req))["data"].(map[string]any)
	if data["size"].(float64) != 0 || len(data["keys"].([]any)) != 0 {
		t.Fatalf("cache-stats after clear %v", data)
	}
}

func TestOptionsPDF(t *testing.T) {
	r := newTestRouter(t)
	seed(t, r)
	w := do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/options/pdf?originStopId=A&destinationStopId=C", nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("status %d content-type %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body is not a pdf")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)
	if w := do(t, r, httptest.NewRequest(http.MethodGet, "/api/health", nil)); w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}
	w := do(t, r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("route_engine_")) {
		t.Fatalf("metrics status %d", w.Code)
	}
	if w := do(t, r, httptest.NewRequest(http.MethodGet, "/nope", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("unknown path status %d", w.Code)
	}
}

func TestGraphStatusAfterBuild(t *testing.T) {
	r := newTestRouter(t)
	seed(t, r)

	w := do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/graph-status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	data := decode(t, w)["data"].(map[string]any)
	for _, key := range []string{"available", "version", "lastUpdated", "nodeCount", "edgeCount", "buildTimeMs", "totalStops", "totalRoutes", "excludedRoutes"} {
		if _, ok := data[key]; !ok {
			t.Fatalf("graph-status missing %q: %v", key, data)
		}
	}
	if data["available"] != true || data["version"].(float64) != 1 || data["nodeCount"].(float64) != 3 ||
		data["edgeCount"].(float64) != 2 || data["totalRoutes"].(float64) != 1 {
		t.Fatalf("unexpected graph-status %v", data)
	}
}

func TestPresetPreferenceEndpoints(t *testing.T) {
	r := newTestRouter(t)
	seed(t, r)

	cases := []struct{ path, want string }{
		{"/api/fastest-route/cheapest", "fare"},
		{"/api/fastest-route/least-transfers", "transfers"},
		{"/api/fastest-route", "duration"},
	}
	for _, tc := range cases {
		// a preference in the query is ignored by the preset endpoints
		url := tc.path + "?originStopId=A&destinationStopId=C"
		if tc.want != "duration" {
			url += "&preference=distance"
		}
		w := do(t, r, httptest.NewRequest(http.MethodGet, url, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d body %s", tc.path, w.Code, w.Body.String())
		}
		body := decode(t, w)
		if body["preference"] != tc.want || len(body["routes"].([]any)) != 1 {
			t.Fatalf("%s: unexpected body %v", tc.path, body)
		}
	}

	w := do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/cheapest?originStopId=A", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("cheapest without destination: status %d", w.Code)
	}
}

func TestFastestDescribesStopsAndRejectsUnknown(t *testing.T) {
	r := newTestRouter(t)
	seed(t, r)

	w := do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route?originStopId=A&destinationStopId=C", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	origin := body["origin"].(map[string]any)
	dest := body["destination"].(map[string]any)
	if origin["name"] != "Alpha" || dest["code"] != "C" {
		t.Fatalf("unexpected endpoints origin=%v destination=%v", origin, dest)
	}

	w = do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route?originStopId=A&destinationStopId=ZZ", nil))
	if w.Code != http.StatusNotFound || decode(t, w)["code"] != "not_found" {
		t.Fatalf("unknown destination: status %d body %s", w.Code, w.Body.String())
	}
}

func TestNearbyStops(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/nearby?latitude=9.0&longitude=76.0", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("nearby before build: status %d", w.Code)
	}

	seed(t, r)
	// A is at the point; B is ~15.6 km away
	w = do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/nearby?latitude=9.0&longitude=76.0", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	data := decode(t, w)["data"].(map[string]any)
	stops := data["stops"].([]any)
	if data["radius"].(float64) != 1 || len(stops) != 1 || stops[0].(map[string]any)["stopId"] != "A" {
		t.Fatalf("unexpected nearby result %v", data)
	}

	w = do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/nearby?latitude=9.0&longitude=76.0&radius=10", nil))
	if stops := decode(t, w)["data"].(map[string]any)["stops"].([]any); len(stops) != 1 {
		t.Fatalf("10 km radius should still only reach A, got %v", stops)
	}

	w = do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/nearby?latitude=9.05&longitude=76.05&radius=10", nil))
	stops = decode(t, w)["data"].(map[string]any)["stops"].([]any)
	if len(stops) != 2 {
		t.Fatalf("midpoint should reach A and B, got %v", stops)
	}
	first := stops[0].(map[string]any)["distance"].(float64)
	second := stops[1].(map[string]any)["distance"].(float64)
	if first > second {
		t.Fatalf("stops not ordered by distance: %v", stops)
	}

	cases := []struct{ query, field string }{
		{"longitude=76.0", "latitude"},
		{"latitude=91&longitude=76.0", "latitude"},
		{"latitude=9&longitude=181", "longitude"},
		{"latitude=9&longitude=76&radius=0.05", "radius"},
		{"latitude=9&longitude=76&radius=11", "radius"},
		{"latitude=abc&longitude=76", "latitude"},
	}
	for _, tc := range cases {
		w := do(t, r, httptest.NewRequest(http.MethodGet, "/api/fastest-route/nearby?"+tc.query, nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", tc.query, w.Code)
		}
		details, _ := decode(t, w)["details"].(map[string]any)
		if details["field"] != tc.field {
			t.Fatalf("%s: field %v, want %s", tc.query, details["field"], tc.field)
		}
	}
}

func TestRoutesListingShowsAccess(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, httptest.NewRequest(http.MethodGet, "/api/routes", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	levels := map[string]string{}
	for _, item := range decode(t, w)["routes"].([]any) {
		rt := item.(map[string]any)
		levels[rt["method"].(string)+" "+rt["path"].(string)] = rt["access"].(string)
	}
	want := map[string]string{
		"POST /api/fastest-route/build-graph": "admin",
		"DELETE /api/fastest-route/cache":     "admin",
		"GET /api/fastest-route/options":      "rate-limited",
		"GET /api/fastest-route/nearby":       "rate-limited",
		"GET /api/fastest-route/graph-status": "public",
		"GET /api/health":                     "public",
	}
	for route, level := range want {
		if levels[route] != level {
			t.Fatalf("%s access = %q, want %q", route, levels[route], level)
		}
	}
}
