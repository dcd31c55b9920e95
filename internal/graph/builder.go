package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"routeengine/internal/domain/models"
	"routeengine/internal/utils"
)

const (
	ReasonNoValidRoutes    = "no_valid_routes"
	ReasonStoreUnavailable = "store_unavailable"
	ReasonTimeout          = "timeout"
)

// BuildError is a failed build. The previously published snapshot stays live.
type BuildError struct {
	Reason   string
	Msg      string
	Err      error
	Excluded []ExcludedRoute
}

func (e BuildError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("graph build failed (%s): %s", e.Reason, e.Msg)
	}
	return fmt.Sprintf("graph build failed (%s)", e.Reason)
}

func (e BuildError) Unwrap() error { return e.Err }

func IsBuildError(err error) (BuildError, bool) {
	var be BuildError
	ok := errors.As(err, &be)
	return be, ok
}

type Options struct {
	// AverageSpeedKmh derives ride time when a route carries neither per-segment
	// times nor an estimated duration.
	AverageSpeedKmh float64
}

// Compile turns the canonical dataset into a snapshot with the given version.
// Routes that fail validation are skipped and listed in Excluded.
func Compile(ctx context.Context, ds models.Dataset, version int64, opts Options) (*Snapshot, error) {
	start := time.Now()
	if opts.AverageSpeedKmh <= 0 {
		opts.AverageSpeedKmh = 40
	}

	snap := &Snapshot{
		Version:   version,
		Stops:     make(map[string]models.Stop, len(ds.Stops)),
		Adjacency: make(map[string][]models.Segment),
		Lines:     make(map[string]*Line, len(ds.Routes)),
		Excluded:  []ExcludedRoute{},
	}

	byCode := make(map[string]models.Stop, len(ds.Stops))
	for _, st := range ds.Stops {
		if st.ID == "" {
			st.ID = st.Code
		}
		byCode[st.Code] = st
		snap.Stops[st.ID] = st
	}

	grouped := make(map[string][]models.RouteStop)
	for _, rs := range ds.RouteStops {
		grouped[rs.RouteNumber] = append(grouped[rs.RouteNumber], rs)
	}

	routes := append([]models.Route(nil), ds.Routes...)
	sort.Slice(routes, func(i, j int) bool { return routes[i].Number < routes[j].Number })

	known := make(map[string]struct{}, len(routes))
	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			return nil, BuildError{Reason: ReasonTimeout, Msg: "build deadline exceeded", Err: err}
		}
		known[route.Number] = struct{}{}
		if route.ID == "" {
			route.ID = route.Number
		}

		line, reason := compileLine(route, grouped[route.Number], byCode, opts)
		if reason != "" {
			snap.Excluded = append(snap.Excluded, ExcludedRoute{RouteNumber: route.Number, Reason: reason})
			continue
		}
		snap.Lines[route.ID] = line
		for _, seg := range line.Segments {
			snap.Adjacency[seg.FromStopID] = append(snap.Adjacency[seg.FromStopID], seg)
			snap.EdgeCount++
		}
	}

	orphans := make([]string, 0)
	for number := range grouped {
		if _, ok := known[number]; !ok {
			orphans = append(orphans, number)
		}
	}
	sort.Strings(orphans)
	for _, number := range orphans {
		snap.Excluded = append(snap.Excluded, ExcludedRoute{RouteNumber: number, Reason: "route-stops reference unknown route"})
	}

	if len(snap.Lines) == 0 {
		return nil, BuildError{Reason: ReasonNoValidRoutes, Msg: "no route produced a valid path", Excluded: snap.Excluded}
	}

	snap.NodeCount = len(snap.Stops)
	snap.BuiltAt = time.Now().UTC()
	snap.BuildTimeMs = time.Since(start).Milliseconds()
	return snap, nil
}

func compileLine(route models.Route, rows []models.RouteStop, byCode map[string]models.Stop, opts Options) (*Line, string) {
	if len(rows) < 2 {
		return nil, "fewer than 2 ordered stops"
	}
	rows = append([]models.RouteStop(nil), rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].StopSequence < rows[j].StopSequence })

	stops := make([]models.Stop, len(rows))
	for i, rs := range rows {
		st, ok := byCode[rs.StopCode]
		if !ok {
			return nil, fmt.Sprintf("unknown stop %s at sequence %d", rs.StopCode, rs.StopSequence)
		}
		if i > 0 && stops[i-1].ID == st.ID {
			return nil, fmt.Sprintf("consecutive duplicate stop %s at sequence %d", rs.StopCode, rs.StopSequence)
		}
		stops[i] = st
	}

	n := len(rows) - 1
	line := &Line{
		Route:    route,
		Stops:    make([]string, len(rows)),
		Segments: make([]models.Segment, 0, n),
		Offsets:  make([]float64, len(rows)),
	}
	for i, st := range stops {
		line.Stops[i] = st.ID
	}

	for i := 0; i < n; i++ {
		cur, next := rows[i], rows[i+1]

		dist := segmentDistance(route, cur, next, stops[i], stops[i+1], n)
		minutes, explicitTime := segmentMinutes(route, cur, next, dist, n, opts.AverageSpeedKmh)
		fare, explicitFare := segmentFare(route, cur, next, dist)

		line.Segments = append(line.Segments, models.Segment{
			RouteID:       route.ID,
			RouteNumber:   route.Number,
			FromStopID:    stops[i].ID,
			ToStopID:      stops[i+1].ID,
			Sequence:      cur.StopSequence,
			Index:         i,
			TravelTimeMin: minutes,
			DistanceKm:    dist,
			Fare:          fare,
			ExplicitTime:  explicitTime,
			ExplicitFare:  explicitFare,
		})
		line.Offsets[i+1] = line.Offsets[i] + minutes
	}

	times := append([]int(nil), route.DepartureTimes...)
	if len(times) == 0 && rows[0].DepartureMin != nil {
		times = []int{*rows[0].DepartureMin}
	}
	sort.Ints(times)
	line.Route.DepartureTimes = times
	return line, ""
}

func segmentDistance(route models.Route, cur, next models.RouteStop, from, to models.Stop, n int) float64 {
	if cur.DistanceFromStart != nil && next.DistanceFromStart != nil && *next.DistanceFromStart >= *cur.DistanceFromStart {
		return *next.DistanceFromStart - *cur.DistanceFromStart
	}
	if next.DistanceFromPrev != nil {
		return *next.DistanceFromPrev
	}
	if route.TotalDistanceKm > 0 {
		return route.TotalDistanceKm / float64(n)
	}
	return utils.HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
}

func segmentMinutes(route models.Route, cur, next models.RouteStop, dist float64, n int, speedKmh float64) (float64, bool) {
	if next.SegmentDuration != nil {
		return *next.SegmentDuration, true
	}
	if next.ArrivalMin != nil {
		leave := cur.DepartureMin
		if leave == nil {
			leave = cur.ArrivalMin
		}
		if leave != nil {
			d := *next.ArrivalMin - *leave
			if d < 0 {
				d += 24 * 60
			}
			return float64(d), true
		}
	}
	if route.EstimatedDurationMin > 0 {
		return route.EstimatedDurationMin / float64(n), false
	}
	return dist / speedKmh * 60, false
}

func segmentFare(route models.Route, cur, next models.RouteStop, dist float64) (float64, bool) {
	if next.SegmentFare != nil {
		return *next.SegmentFare, true
	}
	if cur.FareFromStart != nil && next.FareFromStart != nil && *next.FareFromStart >= *cur.FareFromStart {
		return *next.FareFromStart - *cur.FareFromStart, true
	}
	if route.FarePerKm > 0 {
		return route.FarePerKm * dist, false
	}
	if route.BaseFare > 0 && route.TotalDistanceKm > 0 {
		return route.BaseFare * dist / route.TotalDistanceKm, false
	}
	return 0, false
}
