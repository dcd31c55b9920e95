package models

import (
	"strings"

	"routeengine/internal/domain"
)

// Preference selects the ranking strategy of a search.
type Preference string

const (
	PreferDuration  Preference = "duration"
	PreferFare      Preference = "fare"
	PreferTransfers Preference = "transfers"
	PreferDistance  Preference = "distance"
)

// ParsePreference rejects anything outside the closed set; empty means duration.
func ParsePreference(s string) (Preference, error) {
	switch Preference(strings.ToLower(strings.TrimSpace(s))) {
	case "", PreferDuration:
		return PreferDuration, nil
	case PreferFare:
		return PreferFare, nil
	case PreferTransfers:
		return PreferTransfers, nil
	case PreferDistance:
		return PreferDistance, nil
	}
	return "", domain.ValidationError{Field: "preference", Msg: "must be one of duration, fare, transfers, distance"}
}

// SearchQuery is a validated itinerary request. TimeOfDay is minutes after midnight or -1.
type SearchQuery struct {
	OriginStopID      string     `json:"originStopId"`
	DestinationStopID string     `json:"destinationStopId"`
	Preference        Preference `json:"preference"`
	TimeOfDay         int        `json:"timeOfDay"`
	MaxOptions        int        `json:"maxOptions"`
}

func (q SearchQuery) HasTime() bool { return q.TimeOfDay >= 0 }

type Leg struct {
	RouteID        string  `json:"routeId"`
	RouteNumber    string  `json:"routeNumber"`
	RouteName      string  `json:"routeName,omitempty"`
	BoardStopID    string  `json:"boardStopId"`
	BoardStopName  string  `json:"boardStopName"`
	AlightStopID   string  `json:"alightStopId"`
	AlightStopName string  `json:"alightStopName"`
	DepartureTime  string  `json:"departureTime,omitempty"`
	ArrivalTime    string  `json:"arrivalTime,omitempty"`
	Fare           float64 `json:"fare"`
	DistanceKm     float64 `json:"distanceKm"`
	DurationMin    float64 `json:"durationMin"`
	StopCount      int     `json:"stopCount"`
	ExplicitTime   bool    `json:"-"`
	ExplicitFare   bool    `json:"-"`
}

// Direction is one human-readable instruction; Type is "board" or "alight".
type Direction struct {
	Step     int     `json:"step"`
	Type     string  `json:"type"`
	Route    string  `json:"route"`
	StopID   string  `json:"stopId"`
	StopName string  `json:"stopName"`
	Message  string  `json:"message"`
	Duration float64 `json:"duration,omitempty"`
	Fare     float64 `json:"fare,omitempty"`
}

type Itinerary struct {
	Legs          []Leg       `json:"legs"`
	Stops         []string    `json:"stops"`
	TotalDuration float64     `json:"totalDuration"`
	TotalFare     float64     `json:"totalFare"`
	TotalDistance float64     `json:"totalDistance"`
	TransferCount int         `json:"transferCount"`
	Confidence    int         `json:"confidence"`
	Summary       string      `json:"summary"`
	Directions    []Direction `json:"directions"`
}

// SearchResult is what the finder and the cache hand back. An empty Itineraries
// slice always carries an EmptyReason.
type SearchResult struct {
	Itineraries  []Itinerary        `json:"routes"`
	EmptyReason  domain.EmptyReason `json:"emptyReason,omitempty"`
	GraphVersion int64              `json:"graphVersion"`
}
