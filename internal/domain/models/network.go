package models

// Stop is a boarding/alighting point. ID falls back to Code when the source row has none.
type Stop struct {
	ID   string  `json:"id"`
	Code string  `json:"code"`
	Name string  `json:"name"`
	City string  `json:"city,omitempty"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Route is a bus line. DepartureTimes are minutes after midnight at the first stop.
type Route struct {
	ID                   string  `json:"id"`
	Number               string  `json:"number"`
	Name                 string  `json:"name"`
	StartingPoint        string  `json:"startingPoint"`
	EndingPoint          string  `json:"endingPoint"`
	TotalDistanceKm      float64 `json:"totalDistanceKm"`
	EstimatedDurationMin float64 `json:"estimatedDurationMin,omitempty"`
	BaseFare             float64 `json:"baseFare,omitempty"`
	FarePerKm            float64 `json:"farePerKm,omitempty"`
	DepartureTimes       []int   `json:"departureTimes,omitempty"`
}

// RouteStop places a stop on a route. Optional measurements are nil when the source omitted them.
type RouteStop struct {
	RouteNumber       string   `json:"routeNumber"`
	StopCode          string   `json:"stopCode"`
	StopSequence      int      `json:"stopSequence"`
	DistanceFromStart *float64 `json:"distanceFromStart,omitempty"`
	DistanceFromPrev  *float64 `json:"distanceFromPrev,omitempty"`
	SegmentDuration   *float64 `json:"segmentDuration,omitempty"`
	SegmentFare       *float64 `json:"segmentFare,omitempty"`
	FareFromStart     *float64 `json:"fareFromStart,omitempty"`
	ArrivalMin        *int     `json:"arrivalMin,omitempty"`
	DepartureMin      *int     `json:"departureMin,omitempty"`
}

// Dataset is the full canonical content read by a graph build.
type Dataset struct {
	Stops      []Stop
	Routes     []Route
	RouteStops []RouteStop
}

// Segment is a directed hop between consecutive stops of one route.
type Segment struct {
	RouteID       string  `json:"routeId"`
	RouteNumber   string  `json:"routeNumber"`
	FromStopID    string  `json:"fromStopId"`
	ToStopID      string  `json:"toStopId"`
	Sequence      int     `json:"sequence"`
	Index         int     `json:"index"`
	TravelTimeMin float64 `json:"travelTimeMin"`
	DistanceKm    float64 `json:"distanceKm"`
	Fare          float64 `json:"fare"`
	ExplicitTime  bool    `json:"explicitTime"`
	ExplicitFare  bool    `json:"explicitFare"`
}
