package types

import "encoding/json"

// RouteLeg describes the stretch between two consecutive waypoints.
type RouteLeg struct {
	FromIndex       int     `json:"from_index"`
	ToIndex         int     `json:"to_index"`
	DistanceMeters  float64 `json:"distance_m"`
	DurationSeconds float64 `json:"duration_s"`
}

// RouteResult is a computed driving route over one day's ordered waypoints.
// Geometry is the provider's GeoJSON LineString, carried opaquely for the
// renderer.
type RouteResult struct {
	DistanceMeters  float64         `json:"total_distance_m"`
	DurationSeconds float64         `json:"total_duration_s"`
	Geometry        json.RawMessage `json:"geometry"`
	Legs            []RouteLeg      `json:"segments"`
}
