package routing

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"routeengine/internal/domain"
	"routeengine/internal/domain/models"
	"routeengine/internal/graph"
)

const (
	TimeFilterFirstLeg = "firstLeg"
	TimeFilterAllLegs  = "allLegs"
)

type Options struct {
	// MaxTransfers bounds the number of rounds: an itinerary has at most MaxTransfers+1 legs.
	MaxTransfers  int
	LabelsPerStop int
	TimeFilter    string
}

// Finder runs a round-based label-setting search over a snapshot. It keeps no
// state between calls and is safe for concurrent use.
type Finder struct {
	opts Options
}

func NewFinder(opts Options) *Finder {
	if opts.MaxTransfers < 0 {
		opts.MaxTransfers = 0
	}
	if opts.LabelsPerStop <= 0 {
		opts.LabelsPerStop = 6
	}
	if opts.TimeFilter == "" {
		opts.TimeFilter = TimeFilterFirstLeg
	}
	return &Finder{opts: opts}
}

// label is a partial journey ending at stop. Labels form a parent chain back to the origin.
type label struct {
	parent    *label
	stop      string
	line      *graph.Line
	boardPos  int
	alightPos int
	depart    int
	arrive    int
	legs      int
	c         cost
	legScore  float64
	legTime   bool
	legFare   bool
	legDur    float64
	legFareV  float64
	legDist   float64
}

// visits reports whether stop already lies on the journey up to l.
func (l *label) visits(stop string) bool {
	for cur := l; cur != nil; cur = cur.parent {
		if cur.line == nil {
			if cur.stop == stop {
				return true
			}
			continue
		}
		for p := cur.boardPos; p <= cur.alightPos; p++ {
			if cur.line.Stops[p] == stop {
				return true
			}
		}
	}
	return false
}

func (l *label) chain() []*label {
	var out []*label
	for cur := l; cur != nil && cur.line != nil; cur = cur.parent {
		out = append(out, cur)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (l *label) stopSequence() []string {
	legs := l.chain()
	if len(legs) == 0 {
		return []string{l.stop}
	}
	seq := []string{legs[0].line.Stops[legs[0].boardPos]}
	for _, leg := range legs {
		seq = append(seq, leg.line.Stops[leg.boardPos+1:leg.alightPos+1]...)
	}
	return seq
}

// Search returns up to q.MaxOptions itineraries ranked by q.Preference. Unknown
// stops and unreachable destinations are reported via EmptyReason, not errors.
func (f *Finder) Search(ctx context.Context, snap *graph.Snapshot, q models.SearchQuery) (models.SearchResult, error) {
	if snap == nil {
		return models.SearchResult{}, domain.UnavailableError{Resource: "route graph"}
	}
	if q.OriginStopID == "" || q.DestinationStopID == "" {
		return models.SearchResult{}, domain.ValidationError{Field: "originStopId", Msg: "origin and destination are required"}
	}
	if q.OriginStopID == q.DestinationStopID {
		return models.SearchResult{}, domain.ValidationError{Field: "destinationStopId", Msg: "origin and destination must differ"}
	}
	if q.MaxOptions <= 0 {
		return models.SearchResult{}, domain.ValidationError{Field: "maxOptions", Msg: "must be positive"}
	}
	strat, ok := strategies[q.Preference]
	if !ok {
		return models.SearchResult{}, domain.ValidationError{Field: "preference", Msg: "unsupported preference"}
	}

	res := models.SearchResult{Itineraries: []models.Itinerary{}, GraphVersion: snap.Version}
	if !snap.HasStop(q.OriginStopID) || !snap.HasStop(q.DestinationStopID) {
		res.EmptyReason = domain.EmptyUnknownStop
		return res, nil
	}

	found, err := f.run(ctx, snap, q, strat)
	if err != nil {
		return models.SearchResult{}, err
	}
	if len(found) == 0 {
		res.EmptyReason = domain.EmptyNoPath
		return res, nil
	}
	for _, l := range found {
		res.Itineraries = append(res.Itineraries, toItinerary(snap, l))
	}
	return res, nil
}

func (f *Finder) run(ctx context.Context, snap *graph.Snapshot, q models.SearchQuery, strat strategy) ([]*label, error) {
	origin := &label{stop: q.OriginStopID, depart: -1, arrive: -1}
	frontier := []*label{origin}
	best := map[string]*label{}
	bound := math.Inf(1)

	consider := func(l *label) {
		key := strings.Join(l.stopSequence(), ">")
		if cur, ok := best[key]; ok && strat.compare(cur.c, l.c) <= 0 {
			return
		}
		best[key] = l
		bound = nthPrimary(best, strat, q.MaxOptions)
	}

	for round := 0; round <= f.opts.MaxTransfers && len(frontier) > 0; round++ {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, domain.TimeoutError{Op: "route search", Err: err}
			}
			return nil, err
		}

		next := map[string][]*label{}
		for _, l := range frontier {
			for _, seg := range snap.Adjacency[l.stop] {
				line := snap.Lines[seg.RouteID]
				if line == nil || (l.line != nil && l.line.Route.ID == line.Route.ID) {
					continue
				}
				depart, ok := f.boarding(l, line, seg.Index, q)
				if !ok {
					continue
				}
				f.ride(l, line, seg.Index, depart, q.DestinationStopID, strat, &bound, consider, next)
			}
		}

		if round == f.opts.MaxTransfers {
			break
		}
		frontier = frontier[:0]
		stops := make([]string, 0, len(next))
		for stop := range next {
			stops = append(stops, stop)
		}
		sort.Strings(stops)
		for _, stop := range stops {
			labels := next[stop]
			sort.SliceStable(labels, func(i, j int) bool { return strat.compare(labels[i].c, labels[j].c) < 0 })
			if len(labels) > f.opts.LabelsPerStop {
				labels = labels[:f.opts.LabelsPerStop]
			}
			frontier = append(frontier, labels...)
		}
	}

	out := make([]*label, 0, len(best))
	for _, l := range best {
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if r := strat.compare(out[i].c, out[j].c); r != 0 {
			return r < 0
		}
		return strings.Join(out[i].stopSequence(), ">") < strings.Join(out[j].stopSequence(), ">")
	})
	if len(out) > q.MaxOptions {
		out = out[:q.MaxOptions]
	}
	return out, nil
}

// boarding picks the departure minute for boarding line at pos after l.
// ok is false when the time filter rules the branch out.
func (f *Finder) boarding(l *label, line *graph.Line, pos int, q models.SearchQuery) (int, bool) {
	if !line.Departs() {
		return -1, true
	}
	threshold := -1
	firstLeg := l.parent == nil && l.line == nil
	if firstLeg {
		if q.HasTime() {
			threshold = q.TimeOfDay
		}
	} else if l.arrive >= 0 {
		threshold = l.arrive
	}
	if threshold < 0 {
		return -1, true
	}
	dep := line.NextDeparture(pos, threshold)
	if dep >= 0 {
		return dep, true
	}
	if firstLeg || f.opts.TimeFilter == TimeFilterAllLegs {
		return -1, false
	}
	return -1, true
}

func (f *Finder) ride(l *label, line *graph.Line, from, depart int, dest string, strat strategy, bound *float64,
	consider func(*label), next map[string][]*label) {
	var (
		dur, fare, dist float64
		allTime         = true
		allFare         = true
	)
	for j := from; j < len(line.Segments); j++ {
		seg := line.Segments[j]
		if l.visits(seg.ToStopID) || onLine(line, from, j, seg.ToStopID) {
			return
		}
		dur += seg.TravelTimeMin
		fare += seg.Fare
		dist += seg.DistanceKm
		allTime = allTime && seg.ExplicitTime
		allFare = allFare && seg.ExplicitFare

		nl := &label{
			parent:    l,
			stop:      seg.ToStopID,
			line:      line,
			boardPos:  from,
			alightPos: j + 1,
			depart:    depart,
			arrive:    -1,
			legs:      l.legs + 1,
			c: cost{
				duration:  l.c.duration + dur,
				fare:      l.c.fare + fare,
				distance:  l.c.distance + dist,
				transfers: l.legs,
			},
			legTime:  allTime,
			legFare:  allFare,
			legDur:   dur,
			legFareV: fare,
			legDist:  dist,
		}
		if depart >= 0 {
			nl.arrive = depart + int(math.Round(line.Offsets[j+1]-line.Offsets[from]))
		}
		nl.legScore = l.legScore + explicitness(allTime, allFare)

		// costs only grow further along the line
		if strat.primary(nl.c) > *bound+eps {
			return
		}
		if seg.ToStopID == dest {
			consider(nl)
			return
		}
		next[seg.ToStopID] = append(next[seg.ToStopID], nl)
	}
}

// onLine reports whether stop appears on line between positions from and j (inclusive).
func onLine(line *graph.Line, from, j int, stop string) bool {
	for p := from; p <= j; p++ {
		if line.Stops[p] == stop {
			return true
		}
	}
	return false
}

func explicitness(time, fare bool) float64 {
	s := 0.0
	if time {
		s += 0.5
	}
	if fare {
		s += 0.5
	}
	return s
}

// nthPrimary is the primary metric of the n-th best distinct candidate, or +Inf
// while fewer than n candidates exist.
func nthPrimary(best map[string]*label, strat strategy, n int) float64 {
	if len(best) < n {
		return math.Inf(1)
	}
	vals := make([]float64, 0, len(best))
	for _, l := range best {
		vals = append(vals, strat.primary(l.c))
	}
	sort.Float64s(vals)
	return vals[n-1]
}
