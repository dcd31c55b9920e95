package routing

import "routeengine/internal/domain/models"

const eps = 1e-9

// cost is the additive part of a label that preferences rank on.
type cost struct {
	duration  float64
	fare      float64
	distance  float64
	transfers int
}

type criterion func(a, b cost) int

func byDuration(a, b cost) int { return cmpFloat(a.duration, b.duration) }
func byFare(a, b cost) int     { return cmpFloat(a.fare, b.fare) }
func byDistance(a, b cost) int { return cmpFloat(a.distance, b.distance) }
func byTransfers(a, b cost) int {
	switch {
	case a.transfers < b.transfers:
		return -1
	case a.transfers > b.transfers:
		return 1
	}
	return 0
}

// strategy ranks labels for one preference. The first criterion is also the pruning metric.
type strategy struct {
	criteria []criterion
	primary  func(c cost) float64
}

var strategies = map[models.Preference]strategy{
	models.PreferDuration: {
		criteria: []criterion{byDuration, byTransfers, byFare},
		primary:  func(c cost) float64 { return c.duration },
	},
	models.PreferFare: {
		criteria: []criterion{byFare, byDuration},
		primary:  func(c cost) float64 { return c.fare },
	},
	models.PreferTransfers: {
		criteria: []criterion{byTransfers, byDuration},
		primary:  func(c cost) float64 { return float64(c.transfers) },
	},
	models.PreferDistance: {
		criteria: []criterion{byDistance, byDuration},
		primary:  func(c cost) float64 { return c.distance },
	},
}

func (s strategy) compare(a, b cost) int {
	for _, c := range s.criteria {
		if r := c(a, b); r != 0 {
			return r
		}
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b-eps:
		return -1
	case a > b+eps:
		return 1
	}
	return 0
}
