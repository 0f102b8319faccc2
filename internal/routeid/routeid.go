package routeid

import (
	"math"

	"github.com/example/waymate/internal/models"
)

// The directions provider exposes no stable route identifiers, so identity is
// a tolerance-based heuristic over leg endpoints and metrics. Thresholds are
// configurable; the defaults match observed provider jitter.
const (
	DefaultCoordEpsilonDeg = 1e-4
	DefaultMetricTolerance = 10.0
)

// Comparator decides whether two provider routes are "the same route" across
// independent responses. Zero-valued fields fall back to the defaults.
type Comparator struct {
	CoordEpsilonDeg float64
	MetricTolerance float64
}

func (c Comparator) epsilon() float64 {
	if c.CoordEpsilonDeg > 0 {
		return c.CoordEpsilonDeg
	}
	return DefaultCoordEpsilonDeg
}

func (c Comparator) metricTol() float64 {
	if c.MetricTolerance > 0 {
		return c.MetricTolerance
	}
	return DefaultMetricTolerance
}

// IsSameRoute reports whether a and b have the same leg count and, leg by
// leg, matching endpoints within the coordinate epsilon and matching
// distance/duration within the metric tolerance.
func (c Comparator) IsSameRoute(a, b models.ProviderRoute) bool {
	if len(a.Legs) != len(b.Legs) {
		return false
	}
	for i := range a.Legs {
		la, lb := a.Legs[i], b.Legs[i]
		if !c.closePoint(la.StartLocation, lb.StartLocation) ||
			!c.closePoint(la.EndLocation, lb.EndLocation) {
			return false
		}
		if math.Abs(la.Distance.Value-lb.Distance.Value) > c.metricTol() {
			return false
		}
		if math.Abs(la.Duration.Value-lb.Duration.Value) > c.metricTol() {
			return false
		}
	}
	return true
}

func (c Comparator) closePoint(a, b models.LatLng) bool {
	return math.Abs(a.Lat-b.Lat) < c.epsilon() && math.Abs(a.Lng-b.Lng) < c.epsilon()
}

type original struct {
	route models.ProviderRoute
	index int
}

// Tracker keeps a stable selected-route index across external reordering of
// the live route list. It captures the route list at the moment directions
// first return, then re-resolves the selection whenever the primary route
// changes under it.
type Tracker struct {
	cmp      Comparator
	original []original
	selected int
}

func NewTracker(cmp Comparator) *Tracker {
	return &Tracker{cmp: cmp}
}

// Reset captures a fresh original route list and resets the selection to 0.
// Called on every new search or mode change.
func (t *Tracker) Reset(routes []models.ProviderRoute) {
	t.original = make([]original, len(routes))
	for i, r := range routes {
		t.original[i] = original{route: r, index: i}
	}
	t.selected = 0
}

// Selected returns the index of the currently selected route within the
// original list.
func (t *Tracker) Selected() int { return t.selected }

// Resync searches the original list for the entry matching the current
// primary route and moves the selection to it. An unrecognized primary route
// leaves the selection where it was; this is deliberate, a miss means the
// provider produced a genuinely new route and the old choice is still the
// best anchor we have.
func (t *Tracker) Resync(primary models.ProviderRoute) int {
	for _, o := range t.original {
		if t.cmp.IsSameRoute(o.route, primary) {
			if o.index != t.selected {
				t.selected = o.index
			}
			break
		}
	}
	return t.selected
}
