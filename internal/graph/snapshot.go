package graph

import (
	"time"

	"routeengine/internal/domain/models"
)

// Line is one route compiled for traversal: its stops in order, the segments
// between them and the cumulative ride minutes at each position.
type Line struct {
	Route    models.Route
	Stops    []string
	Segments []models.Segment
	Offsets  []float64
}

// Departs reports whether the line runs on a timetable.
func (l *Line) Departs() bool { return len(l.Route.DepartureTimes) > 0 }

// NextDeparture returns the earliest departure from stop position pos at or
// after minute, or -1 when no run qualifies the same day.
func (l *Line) NextDeparture(pos int, minute int) int {
	offset := int(l.Offsets[pos] + 0.5)
	for _, start := range l.Route.DepartureTimes {
		if dep := start + offset; dep >= minute {
			return dep
		}
	}
	return -1
}

type ExcludedRoute struct {
	RouteNumber string `json:"routeNumber"`
	Reason      string `json:"reason"`
}

// Snapshot is an immutable compiled graph. Readers share it without locking.
type Snapshot struct {
	Version     int64
	Stops       map[string]models.Stop
	Adjacency   map[string][]models.Segment
	Lines       map[string]*Line
	NodeCount   int
	EdgeCount   int
	BuildTimeMs int64
	BuiltAt     time.Time
	Excluded    []ExcludedRoute
}

func (s *Snapshot) HasStop(id string) bool {
	_, ok := s.Stops[id]
	return ok
}

func (s *Snapshot) StopName(id string) string {
	if st, ok := s.Stops[id]; ok && st.Name != "" {
		return st.Name
	}
	return id
}
