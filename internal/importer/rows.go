package importer

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"routeengine/internal/domain/models"
	"routeengine/internal/utils"

	"github.com/go-playground/validator/v10"
)

type stopRow struct {
	ID        string `field:"id"`
	StopCode  string `field:"stopCode" validate:"required,max=64"`
	StopName  string `field:"stopName" validate:"required"`
	City      string `field:"city"`
	Latitude  string `field:"latitude" validate:"required,latitude"`
	Longitude string `field:"longitude" validate:"required,longitude"`
}

type routeRow struct {
	ID                string `field:"id"`
	RouteNumber       string `field:"routeNumber" validate:"required,max=64"`
	RouteName         string `field:"routeName" validate:"required"`
	StartingPoint     string `field:"startingPoint" validate:"required"`
	EndingPoint       string `field:"endingPoint" validate:"required"`
	TotalDistance     string `field:"totalDistance" validate:"required,numeric"`
	EstimatedDuration string `field:"estimatedDuration" validate:"omitempty,numeric"`
	BaseFare          string `field:"baseFare" validate:"omitempty,numeric"`
	FarePerKm         string `field:"farePerKm" validate:"omitempty,numeric"`
	DepartureTimes    string `field:"departureTimes" validate:"omitempty,clocklist"`
}

type routeStopRow struct {
	RouteNumber        string `field:"routeNumber" validate:"required"`
	StopCode           string `field:"stopCode" validate:"required"`
	StopSequence       string `field:"stopSequence" validate:"required,number"`
	DistanceFromStart  string `field:"distanceFromStart" validate:"omitempty,numeric"`
	DistanceFromPrev   string `field:"distanceFromPrev" validate:"omitempty,numeric"`
	SegmentDuration    string `field:"segmentDuration" validate:"omitempty,numeric"`
	SegmentFare        string `field:"segmentFare" validate:"omitempty,numeric"`
	FareFromStart      string `field:"fareFromStart" validate:"omitempty,numeric"`
	EstimatedArrival   string `field:"estimatedArrival" validate:"omitempty,clock"`
	EstimatedDeparture string `field:"estimatedDeparture" validate:"omitempty,clock"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("field"); name != "" {
			return name
		}
		return fld.Name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return utils.IsClock(fl.Field().String())
	})
	_ = v.RegisterValidation("clocklist", func(fl validator.FieldLevel) bool {
		_, err := utils.ParseClockList(fl.Field().String())
		return err == nil
	})
	return v
}

// describeValidation turns validator output into row reasons such as
// "missing required field: latitude".
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			reasons = append(reasons, "missing required field: "+fe.Field())
		case "latitude", "longitude":
			reasons = append(reasons, "invalid coordinate for field: "+fe.Field())
		case "numeric", "number":
			reasons = append(reasons, "invalid number for field: "+fe.Field())
		case "clock", "clocklist":
			reasons = append(reasons, "invalid time for field: "+fe.Field()+" (expected HH:MM)")
		case "max":
			reasons = append(reasons, "value too long for field: "+fe.Field())
		default:
			reasons = append(reasons, "invalid value for field: "+fe.Field())
		}
	}
	return strings.Join(reasons, "; ")
}

func stopRowFrom(rec record) stopRow {
	return stopRow{
		ID:        rec.pick("id", "stopid"),
		StopCode:  rec.pick("stopcode", "code"),
		StopName:  rec.pick("stopname", "name"),
		City:      rec.pick("city", "district"),
		Latitude:  rec.pick("latitude", "lat"),
		Longitude: rec.pick("longitude", "lng", "lon", "long"),
	}
}

func routeRowFrom(rec record) routeRow {
	return routeRow{
		ID:                rec.pick("id", "routeid"),
		RouteNumber:       rec.pick("routenumber", "routeno", "number"),
		RouteName:         rec.pick("routename", "name"),
		StartingPoint:     rec.pick("startingpoint", "origin", "from"),
		EndingPoint:       rec.pick("endingpoint", "destination", "to"),
		TotalDistance:     rec.pick("totaldistance", "totaldistancekm", "distance"),
		EstimatedDuration: rec.pick("estimatedduration", "estimateddurationmin", "duration"),
		BaseFare:          rec.pick("basefare"),
		FarePerKm:         rec.pick("fareperkm"),
		DepartureTimes:    rec.pick("departuretimes", "departures", "schedule"),
	}
}

func routeStopRowFrom(rec record) routeStopRow {
	return routeStopRow{
		RouteNumber:        rec.pick("routenumber", "routeno", "route"),
		StopCode:           rec.pick("stopcode", "code", "stop"),
		StopSequence:       rec.pick("stopsequence", "sequence", "seq"),
		DistanceFromStart:  rec.pick("distancefromstart"),
		DistanceFromPrev:   rec.pick("distancefromprev", "distancefromprevious"),
		SegmentDuration:    rec.pick("segmentduration", "traveltime", "traveltimemin"),
		SegmentFare:        rec.pick("segmentfare", "fare"),
		FareFromStart:      rec.pick("farefromstart"),
		EstimatedArrival:   rec.pick("estimatedarrival", "arrival"),
		EstimatedDeparture: rec.pick("estimateddeparture", "departure"),
	}
}

func parseFloat(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for field: %s", field)
	}
	if v < 0 {
		return 0, fmt.Errorf("field must not be negative: %s", field)
	}
	return v, nil
}

func optFloat(field, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := parseFloat(field, raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optClock(raw string) *int {
	if raw == "" {
		return nil
	}
	v, err := utils.ParseClock(raw)
	if err != nil {
		return nil
	}
	return &v
}

func (r stopRow) toModel() (models.Stop, error) {
	lat, err := strconv.ParseFloat(r.Latitude, 64)
	if err != nil {
		return models.Stop{}, fmt.Errorf("invalid coordinate for field: latitude")
	}
	lng, err := strconv.ParseFloat(r.Longitude, 64)
	if err != nil {
		return models.Stop{}, fmt.Errorf("invalid coordinate for field: longitude")
	}
	id := r.ID
	if id == "" {
		id = r.StopCode
	}
	return models.Stop{
		ID:   id,
		Code: r.StopCode,
		Name: utils.NormalizeSpace(r.StopName),
		City: utils.NormalizeSpace(r.City),
		Lat:  lat,
		Lng:  lng,
	}, nil
}

func (r routeRow) toModel() (models.Route, error) {
	total, err := parseFloat("totalDistance", r.TotalDistance)
	if err != nil {
		return models.Route{}, err
	}
	out := models.Route{
		ID:              r.ID,
		Number:          r.RouteNumber,
		Name:            utils.NormalizeSpace(r.RouteName),
		StartingPoint:   utils.NormalizeSpace(r.StartingPoint),
		EndingPoint:     utils.NormalizeSpace(r.EndingPoint),
		TotalDistanceKm: total,
	}
	if out.ID == "" {
		out.ID = r.RouteNumber
	}
	for _, opt := range []struct {
		field string
		raw   string
		dst   *float64
	}{
		{"estimatedDuration", r.EstimatedDuration, &out.EstimatedDurationMin},
		{"baseFare", r.BaseFare, &out.BaseFare},
		{"farePerKm", r.FarePerKm, &out.FarePerKm},
	} {
		if opt.raw == "" {
			continue
		}
		v, err := parseFloat(opt.field, opt.raw)
		if err != nil {
			return models.Route{}, err
		}
		*opt.dst = v
	}
	if r.DepartureTimes != "" {
		times, err := utils.ParseClockList(r.DepartureTimes)
		if err != nil {
			return models.Route{}, fmt.Errorf("invalid time for field: departureTimes (expected HH:MM)")
		}
		out.DepartureTimes = times
	}
	return out, nil
}

func (r routeStopRow) toModel() (models.RouteStop, error) {
	seq, err := strconv.Atoi(r.StopSequence)
	if err != nil {
		return models.RouteStop{}, fmt.Errorf("invalid number for field: stopSequence")
	}
	out := models.RouteStop{
		RouteNumber:  r.RouteNumber,
		StopCode:     r.StopCode,
		StopSequence: seq,
		ArrivalMin:   optClock(r.EstimatedArrival),
		DepartureMin: optClock(r.EstimatedDeparture),
	}
	for _, opt := range []struct {
		field string
		raw   string
		dst   **float64
	}{
		{"distanceFromStart", r.DistanceFromStart, &out.DistanceFromStart},
		{"distanceFromPrev", r.DistanceFromPrev, &out.DistanceFromPrev},
		{"segmentDuration", r.SegmentDuration, &out.SegmentDuration},
		{"segmentFare", r.SegmentFare, &out.SegmentFare},
		{"fareFromStart", r.FareFromStart, &out.FareFromStart},
	} {
		v, err := optFloat(opt.field, opt.raw)
		if err != nil {
			return models.RouteStop{}, err
		}
		*opt.dst = v
	}
	return out, nil
}
