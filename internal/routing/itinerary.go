package routing

import (
	"fmt"
	"math"
	"strings"

	"routeengine/internal/domain/models"
	"routeengine/internal/graph"
	"routeengine/internal/utils"
)

func toItinerary(snap *graph.Snapshot, l *label) models.Itinerary {
	chain := l.chain()
	it := models.Itinerary{
		Legs:          make([]models.Leg, 0, len(chain)),
		Stops:         l.stopSequence(),
		TotalDuration: utils.Round1(l.c.duration),
		TotalFare:     utils.RoundMoney(l.c.fare),
		TotalDistance: utils.Round1(l.c.distance),
		TransferCount: len(chain) - 1,
	}
	for _, leg := range chain {
		board := leg.line.Stops[leg.boardPos]
		alight := leg.line.Stops[leg.alightPos]
		it.Legs = append(it.Legs, models.Leg{
			RouteID:        leg.line.Route.ID,
			RouteNumber:    leg.line.Route.Number,
			RouteName:      leg.line.Route.Name,
			BoardStopID:    board,
			BoardStopName:  snap.StopName(board),
			AlightStopID:   alight,
			AlightStopName: snap.StopName(alight),
			DepartureTime:  utils.FormatClock(leg.depart),
			ArrivalTime:    utils.FormatClock(leg.arrive),
			Fare:           utils.RoundMoney(leg.legFareV),
			DistanceKm:     utils.Round1(leg.legDist),
			DurationMin:    utils.Round1(leg.legDur),
			StopCount:      leg.alightPos - leg.boardPos,
			ExplicitTime:   leg.legTime,
			ExplicitFare:   leg.legFare,
		})
	}
	if n := len(chain); n > 0 {
		it.Confidence = int(math.Round(100 * l.legScore / float64(n)))
	}
	it.Summary = summarize(it)
	it.Directions = directions(it)
	return it
}

func summarize(it models.Itinerary) string {
	if len(it.Legs) == 0 {
		return ""
	}
	if len(it.Legs) == 1 {
		leg := it.Legs[0]
		return fmt.Sprintf("Take %s from %s to %s", leg.RouteNumber, leg.BoardStopName, leg.AlightStopName)
	}
	numbers := make([]string, 0, len(it.Legs))
	for _, leg := range it.Legs {
		numbers = append(numbers, leg.RouteNumber)
	}
	return fmt.Sprintf("Take %s with %d transfer(s)", strings.Join(numbers, " → "), it.TransferCount)
}

// directions emits a board step per leg, an alight step at each transfer and
// a final alight at the destination.
func directions(it models.Itinerary) []models.Direction {
	out := make([]models.Direction, 0, len(it.Legs)*2)
	add := func(d models.Direction) {
		d.Step = len(out) + 1
		out = append(out, d)
	}
	for i, leg := range it.Legs {
		if i > 0 {
			prev := it.Legs[i-1]
			add(models.Direction{
				Type:     "alight",
				Route:    prev.RouteNumber,
				StopID:   prev.AlightStopID,
				StopName: prev.AlightStopName,
				Message:  "Alight at " + prev.AlightStopName,
			})
		}
		msg := fmt.Sprintf("Board %s at %s", leg.RouteNumber, leg.BoardStopName)
		if leg.DepartureTime != "" {
			msg += " (departs " + leg.DepartureTime + ")"
		}
		add(models.Direction{
			Type:     "board",
			Route:    leg.RouteNumber,
			StopID:   leg.BoardStopID,
			StopName: leg.BoardStopName,
			Message:  msg,
			Duration: leg.DurationMin,
			Fare:     leg.Fare,
		})
	}
	if n := len(it.Legs); n > 0 {
		last := it.Legs[n-1]
		add(models.Direction{
			Type:     "alight",
			Route:    last.RouteNumber,
			StopID:   last.AlightStopID,
			StopName: last.AlightStopName,
			Message:  "Alight at " + last.AlightStopName + " (final destination)",
		})
	}
	return out
}
