package models

import "time"

// TravelMode governs provider requests and synthetic-route speed estimates.
type TravelMode string

const (
	ModeDriving TravelMode = "DRIVING"
	ModeWalking TravelMode = "WALKING"
	ModeTransit TravelMode = "TRANSIT"
	// ModeRidesharing is a presentation-only pseudo-mode the directions
	// provider does not understand; it never triggers a provider request.
	ModeRidesharing TravelMode = "RIDESHARING"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is a coordinate with an optional human-readable label.
type Place struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Description string  `json:"description,omitempty"`
}

func (p Place) LatLng() LatLng { return LatLng{Lat: p.Lat, Lng: p.Lng} }

// CustomRoute is an administrator-authored route overlay. Instances are
// fetched read-only from the collection endpoint and never mutated by the
// rider client; composition always works on copies.
type CustomRoute struct {
	ID          string     `json:"id,omitempty"`
	Origin      Place      `json:"origin"`
	Destination Place      `json:"destination"`
	TravelMode  TravelMode `json:"travelMode"`
	RoutePath   []LatLng   `json:"routePath"`
	DistanceM   float64    `json:"distance"`
	DurationS   float64    `json:"duration"`
}

// TextValue mirrors the provider's {text, value} distance/duration shape.
type TextValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

type RouteStep struct {
	StartLocation LatLng    `json:"start_location"`
	EndLocation   LatLng    `json:"end_location"`
	Distance      TextValue `json:"distance"`
	Duration      TextValue `json:"duration"`
	Path          []LatLng  `json:"path,omitempty"`
	Instruction   string    `json:"html_instructions,omitempty"`
}

type RouteLeg struct {
	StartLocation LatLng      `json:"start_location"`
	EndLocation   LatLng      `json:"end_location"`
	Distance      TextValue   `json:"distance"`
	Duration      TextValue   `json:"duration"`
	Steps         []RouteStep `json:"steps"`
}

// ProviderRoute is the third-party route structure. Synthesized overlays are
// tagged with IsCustomRoute and carry a back-reference to their source.
type ProviderRoute struct {
	Summary         string       `json:"summary"`
	Legs            []RouteLeg   `json:"legs"`
	OverviewPath    []LatLng     `json:"overview_path,omitempty"`
	IsCustomRoute   bool         `json:"isCustomRoute,omitempty"`
	CustomRouteData *CustomRoute `json:"customRouteData,omitempty"`
}

// DirectionsResult is the unit exchanged between the coordinator and the rest
// of the application. Custom routes always trail native ones.
type DirectionsResult struct {
	Routes []ProviderRoute `json:"routes"`
}

// RouteInfo pairs a DirectionsResult with its request context. TravelMode is
// the single source of truth the coordinator reconciles against.
type RouteInfo struct {
	Origin      LatLng     `json:"origin"`
	Destination LatLng     `json:"destination"`
	TravelMode  TravelMode `json:"travelMode"`
	Waypoints   []LatLng   `json:"waypoints,omitempty"`
}

// LocationUpdate is ephemeral rider position state, overwritten per user.
type LocationUpdate struct {
	UserID    string    `json:"userId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceEvent is the record published to the event stream whenever a user's
// online status flips.
type PresenceEvent struct {
	UserID    string    `json:"user_id"`
	IsOnline  bool      `json:"is_online"`
	Timestamp time.Time `json:"timestamp"`
}
