package geomatch

import (
	"math"
	"testing"

	"github.com/example/waymate/internal/models"
)

func TestDistanceKmZero(t *testing.T) {
	p := models.LatLng{Lat: 44.4268, Lng: 26.1025}
	if d := DistanceKm(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestIsPointCloseTolerance(t *testing.T) {
	m := Matcher{}
	origin := models.LatLng{Lat: 0, Lng: 0}
	// 0.0045 deg latitude is roughly 500 m
	near := models.LatLng{Lat: 0.0045, Lng: 0}
	// 0.0135 deg latitude is roughly 1500 m
	far := models.LatLng{Lat: 0.0135, Lng: 0}

	if !m.IsPointClose(origin, near) {
		t.Fatalf("point 500m away should be close")
	}
	if m.IsPointClose(origin, far) {
		t.Fatalf("point 1500m away should not be close")
	}
}

func TestIsPointCloseInvalidCoordinates(t *testing.T) {
	m := Matcher{}
	good := models.LatLng{Lat: 10, Lng: 10}
	cases := []models.LatLng{
		{Lat: math.NaN(), Lng: 10},
		{Lat: 10, Lng: math.Inf(1)},
		{Lat: 95, Lng: 10},
		{Lat: 10, Lng: -190},
	}
	for _, c := range cases {
		if m.IsPointClose(good, c) || m.IsPointClose(c, good) {
			t.Fatalf("invalid coordinate %+v should fail closed", c)
		}
	}
}

func TestIsRelevantBothEndsMustMatch(t *testing.T) {
	m := Matcher{}
	route := models.CustomRoute{
		Origin:      models.Place{Lat: 44.4268, Lng: 26.1025},
		Destination: models.Place{Lat: 44.4300, Lng: 26.1100},
		TravelMode:  models.ModeDriving,
	}
	reqOrigin := models.LatLng{Lat: 44.4300, Lng: 26.1060}      // ~450 m from origin
	reqDestination := models.LatLng{Lat: 44.4310, Lng: 26.1130} // ~260 m from destination

	if !m.IsRelevant(route, reqOrigin, reqDestination) {
		t.Fatalf("both ends within 1km should be relevant")
	}
	// Destination far away: only one end matches.
	if m.IsRelevant(route, reqOrigin, models.LatLng{Lat: 45.0, Lng: 26.1130}) {
		t.Fatalf("route matching only one end must not be relevant")
	}
}

func TestIsRelevantNotSymmetric(t *testing.T) {
	m := Matcher{}
	route := models.CustomRoute{
		Origin:      models.Place{Lat: 44.4268, Lng: 26.1025},
		Destination: models.Place{Lat: 44.5300, Lng: 26.2100},
	}
	a := models.LatLng{Lat: 44.4268, Lng: 26.1025}
	b := models.LatLng{Lat: 44.5300, Lng: 26.2100}

	if !m.IsRelevant(route, a, b) {
		t.Fatalf("forward direction should match")
	}
	if m.IsRelevant(route, b, a) {
		t.Fatalf("swapped endpoints must not match; order matters")
	}
}

func TestFilterByTravelMode(t *testing.T) {
	m := Matcher{}
	routes := []models.CustomRoute{
		{
			Origin:      models.Place{Lat: 44.4268, Lng: 26.1025},
			Destination: models.Place{Lat: 44.4300, Lng: 26.1100},
			TravelMode:  models.ModeDriving,
		},
	}
	origin := models.LatLng{Lat: 44.4268, Lng: 26.1025}
	destination := models.LatLng{Lat: 44.4300, Lng: 26.1100}

	if got := m.Filter(routes, origin, destination, models.ModeDriving); len(got) != 1 {
		t.Fatalf("expected 1 relevant route, got %d", len(got))
	}
	// Same coordinates, different mode: mode mismatch wins.
	if got := m.Filter(routes, origin, destination, models.ModeWalking); len(got) != 0 {
		t.Fatalf("walking request must not match a driving route")
	}
	// Transit never matches custom routes at all.
	if got := m.Filter(routes, origin, destination, models.ModeTransit); got != nil {
		t.Fatalf("transit must never match custom routes")
	}
}

func TestHaversineProviderCumulative(t *testing.T) {
	var g Haversine
	if d := g.Distance([]models.LatLng{{Lat: 0, Lng: 0}}); d != 0 {
		t.Fatalf("single point path should have zero length, got %f", d)
	}
	path := []models.LatLng{{Lat: 0, Lng: 0}, {Lat: 0.0045, Lng: 0}, {Lat: 0.009, Lng: 0}}
	d := g.Distance(path)
	want := 2 * DistanceKm(path[0], path[1]) * 1000
	if math.Abs(d-want) > 0.01 {
		t.Fatalf("cumulative distance %f, want %f", d, want)
	}
}
