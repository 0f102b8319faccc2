package geomatch

import (
	"math"

	"github.com/example/waymate/internal/models"
)

// Matching policy constants. The 1 km tolerance is deliberately coarse: a
// custom route applies to any request starting and ending near its endpoints,
// not just exact matches.
const (
	EarthRadiusKm           = 6371.0
	DefaultPointToleranceKm = 1.0
)

// GeometryProvider abstracts path-length computation so callers are not tied
// to any concrete mapping SDK.
type GeometryProvider interface {
	// Distance returns the cumulative great-circle length of the polyline
	// in meters. Fewer than two points yields zero.
	Distance(path []models.LatLng) float64
}

// Haversine is the default GeometryProvider.
type Haversine struct{}

func (Haversine) Distance(path []models.LatLng) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += DistanceKm(path[i-1], path[i]) * 1000
	}
	return total
}

// DistanceKm returns the great-circle distance between two points in km.
func DistanceKm(p1, p2 models.LatLng) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(p2.Lat - p1.Lat)
	dLng := toRad(p2.Lng - p1.Lng)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(p1.Lat))*math.Cos(toRad(p2.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Matcher decides whether a custom route is relevant to a requested
// origin/destination pair. The zero tolerance means "use the default".
type Matcher struct {
	PointToleranceKm float64
}

func (m Matcher) tolerance() float64 {
	if m.PointToleranceKm > 0 {
		return m.PointToleranceKm
	}
	return DefaultPointToleranceKm
}

// IsPointClose reports whether two points lie within the matching tolerance.
// Invalid coordinates fail closed.
func (m Matcher) IsPointClose(p1, p2 models.LatLng) bool {
	if !validLatLng(p1) || !validLatLng(p2) {
		return false
	}
	return DistanceKm(p1, p2) <= m.tolerance()
}

// IsRelevant reports whether both endpoints of the custom route sit within
// tolerance of the requested endpoints. Both ends must match; order matters.
func (m Matcher) IsRelevant(route models.CustomRoute, origin, destination models.LatLng) bool {
	return m.IsPointClose(route.Origin.LatLng(), origin) &&
		m.IsPointClose(route.Destination.LatLng(), destination)
}

// Filter returns the routes relevant to the request under the given travel
// mode. Only walking and driving routes ever match; other modes have no
// custom-route overlays.
func (m Matcher) Filter(routes []models.CustomRoute, origin, destination models.LatLng, mode models.TravelMode) []models.CustomRoute {
	if mode != models.ModeWalking && mode != models.ModeDriving {
		return nil
	}
	var out []models.CustomRoute
	for _, r := range routes {
		if r.TravelMode != mode {
			continue
		}
		if m.IsRelevant(r, origin, destination) {
			out = append(out, r)
		}
	}
	return out
}

func validLatLng(p models.LatLng) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
