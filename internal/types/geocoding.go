package types

// GeocodedLocation is one resolved coordinate pair with the provider's
// display label for the matched entity.
type GeocodedLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label"`
}

// SearchCandidate is one ranked result from the search provider. Relevance is
// the provider's own importance signal in the 0-1 range.
type SearchCandidate struct {
	Label     string  `json:"display_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Relevance float64 `json:"relevance"`
	Type      string  `json:"type"`
}

// PlaceFacts is the structured metadata returned by the secondary knowledge
// source when no encyclopedic article can be resolved for a place.
type PlaceFacts struct {
	Category string `json:"category"`
	Cuisine  string `json:"cuisine,omitempty"`
	Address  string `json:"address,omitempty"`
}

// GeocodePreviewResponse is the payload of the interactive geocode preview
// endpoint.
type GeocodePreviewResponse struct {
	Query   string            `json:"query"`
	Results []SearchCandidate `json:"results"`
	Total   int               `json:"total"`
}
