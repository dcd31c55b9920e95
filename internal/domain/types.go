package domain

import "strings"

// DataType selects which canonical collection an import batch feeds.
type DataType string

const (
	DataTypeStops      DataType = "stops"
	DataTypeRoutes     DataType = "routes"
	DataTypeRouteStops DataType = "routeStops"
)

// AllDataTypes lists import targets in dependency order.
var AllDataTypes = []DataType{DataTypeStops, DataTypeRoutes, DataTypeRouteStops}

// ParseDataType accepts the canonical names plus a few casing/spelling variants.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stops", "stop":
		return DataTypeStops, nil
	case "routes", "route":
		return DataTypeRoutes, nil
	case "routestops", "route_stops", "route-stops", "routestop":
		return DataTypeRouteStops, nil
	}
	return "", ValidationError{Field: "dataType", Msg: "must be one of stops, routes, routeStops"}
}

// Format is the payload encoding of an import batch.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", ValidationError{Field: "format", Msg: "must be csv or json"}
}

// EmptyReason explains a successful search that produced no itineraries.
type EmptyReason string

const (
	EmptyNone        EmptyReason = ""
	EmptyUnknownStop EmptyReason = "UNKNOWN_STOP"
	EmptyNoPath      EmptyReason = "NO_PATH"
)

// RequestContext carries authenticated user info when available.
type RequestContext struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}
