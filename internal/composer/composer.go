package composer

import (
	"fmt"
	"math"

	"github.com/example/waymate/internal/geomatch"
	"github.com/example/waymate/internal/models"
)

// Fixed speed model for synthetic route durations. These are policy
// constants, not measurements.
const (
	WalkingSpeedMps = 1.4
	DrivingSpeedMps = 13.9
)

// Composer turns relevant custom routes into provider-shaped synthetic routes
// and merges them into a directions result.
type Composer struct {
	Geometry geomatch.GeometryProvider
}

func New(geometry geomatch.GeometryProvider) *Composer {
	if geometry == nil {
		geometry = geomatch.Haversine{}
	}
	return &Composer{Geometry: geometry}
}

// SpeedFor returns the modelled speed in m/s for a travel mode. Modes without
// a custom-route overlay fall back to the walking speed; they never reach the
// composer through the geomatch filter anyway.
func SpeedFor(mode models.TravelMode) float64 {
	if mode == models.ModeDriving {
		return DrivingSpeedMps
	}
	return WalkingSpeedMps
}

// PathDistanceM returns the cumulative great-circle length of a route path
// in meters, summed pairwise over consecutive points.
func (c *Composer) PathDistanceM(path []models.LatLng) float64 {
	return c.Geometry.Distance(path)
}

// DurationS derives a duration from distance using the fixed speed model.
func DurationS(distanceM float64, mode models.TravelMode) float64 {
	return math.Round(distanceM / SpeedFor(mode))
}

// Compose returns a new DirectionsResult holding the template's native routes
// followed by one synthetic route per custom route. Any synthetic routes
// already present in the template are dropped first, so composing twice with
// the same inputs yields the same output. The template is deep-copied and
// never mutated.
func (c *Composer) Compose(template *models.DirectionsResult, custom []models.CustomRoute, mode models.TravelMode) *models.DirectionsResult {
	out := &models.DirectionsResult{}
	if template != nil {
		for _, r := range template.Routes {
			if r.IsCustomRoute {
				continue
			}
			out.Routes = append(out.Routes, copyRoute(r))
		}
	}
	for i := range custom {
		out.Routes = append(out.Routes, c.Synthesize(custom[i], mode))
	}
	return out
}

// Synthesize builds one provider-shaped route from a custom path: a single
// leg with a single step carrying the full path, which is what the polyline
// renderer downstream expects.
func (c *Composer) Synthesize(route models.CustomRoute, mode models.TravelMode) models.ProviderRoute {
	src := copyCustomRoute(route)

	distanceM := c.PathDistanceM(src.RoutePath)
	durationS := DurationS(distanceM, mode)

	start := src.Origin.LatLng()
	end := src.Destination.LatLng()
	if n := len(src.RoutePath); n > 0 {
		start = src.RoutePath[0]
		end = src.RoutePath[n-1]
	}

	distance := models.TextValue{Text: formatDistance(distanceM), Value: distanceM}
	duration := models.TextValue{Text: formatDuration(durationS), Value: durationS}

	step := models.RouteStep{
		StartLocation: start,
		EndLocation:   end,
		Distance:      distance,
		Duration:      duration,
		Path:          src.RoutePath,
	}
	leg := models.RouteLeg{
		StartLocation: start,
		EndLocation:   end,
		Distance:      distance,
		Duration:      duration,
		Steps:         []models.RouteStep{step},
	}
	return models.ProviderRoute{
		Summary:         fmt.Sprintf("Custom Route (%s)", mode),
		Legs:            []models.RouteLeg{leg},
		OverviewPath:    src.RoutePath,
		IsCustomRoute:   true,
		CustomRouteData: &src,
	}
}

func copyCustomRoute(r models.CustomRoute) models.CustomRoute {
	out := r
	out.RoutePath = append([]models.LatLng(nil), r.RoutePath...)
	return out
}

func copyRoute(r models.ProviderRoute) models.ProviderRoute {
	out := r
	out.OverviewPath = append([]models.LatLng(nil), r.OverviewPath...)
	out.Legs = make([]models.RouteLeg, len(r.Legs))
	for i, leg := range r.Legs {
		cl := leg
		cl.Steps = make([]models.RouteStep, len(leg.Steps))
		for j, st := range leg.Steps {
			cs := st
			cs.Path = append([]models.LatLng(nil), st.Path...)
			cl.Steps[j] = cs
		}
		out.Legs[i] = cl
	}
	if r.CustomRouteData != nil {
		cr := copyCustomRoute(*r.CustomRouteData)
		out.CustomRouteData = &cr
	}
	return out
}

func formatDistance(m float64) string {
	if m >= 1000 {
		return fmt.Sprintf("%.1f km", m/1000)
	}
	return fmt.Sprintf("%.0f m", m)
}

func formatDuration(s float64) string {
	mins := int(math.Ceil(s / 60))
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("%d mins", mins)
}
