package types

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus is the pipeline state tag persisted on a trip. Transitions are
// strictly linear; "error" is terminal.
type TripStatus string

const (
	TripStatusPending      TripStatus = "pending"
	TripStatusGeocoding    TripStatus = "geocoding"
	TripStatusRouting      TripStatus = "routing"
	TripStatusEnriching    TripStatus = "enriching"
	TripStatusRendering    TripStatus = "rendering"
	TripStatusPreviewReady TripStatus = "preview_ready"
	TripStatusComplete     TripStatus = "complete"
	TripStatusError        TripStatus = "error"
)

type PlaceCategory string

const (
	CategoryLodging    PlaceCategory = "lodging"
	CategoryAttraction PlaceCategory = "attraction"
	CategoryDining     PlaceCategory = "dining"
)

// MaxPlacesPerDay caps the places accepted per day at input validation time.
const MaxPlacesPerDay = 5

type Trip struct {
	ID           uuid.UUID     `json:"id"`
	Title        string        `json:"title"`
	StartDate    *string       `json:"start_date,omitempty"`
	EndDate      *string       `json:"end_date,omitempty"`
	Status       TripStatus    `json:"status"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	EnrichedData *EnrichedData `json:"enriched_data,omitempty"`
	DocumentPath *string       `json:"document_path,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	Days         []Day         `json:"days"`
}

type Day struct {
	ID            int64     `json:"id"`
	TripID        uuid.UUID `json:"trip_id"`
	DayNumber     int       `json:"day_number"`
	StartLocation *string   `json:"start_location,omitempty"`
	EndLocation   *string   `json:"end_location,omitempty"`
	Places        []Place   `json:"places"`
}

type Place struct {
	ID        int64         `json:"id"`
	DayID     int64         `json:"day_id"`
	Name      string        `json:"name"`
	Category  PlaceCategory `json:"category"`
	Position  int           `json:"position"`
	Latitude  *float64      `json:"latitude,omitempty"`
	Longitude *float64      `json:"longitude,omitempty"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeocodingHint is the city/country context captured per place when an
// itinerary is extracted from a chat conversation. Keys in the hints map are
// "<day_number>:<place name>".
type GeocodingHint struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// DayEndpoints snapshots the resolved start/end coordinates of one day; used
// only by the rendering stage.
type DayEndpoints struct {
	Start *GeoPoint `json:"start"`
	End   *GeoPoint `json:"end"`
}

// EnrichedData accumulates pipeline stage outputs for one trip. Sections are
// written monotonically: each stage merges its own section and must leave the
// others untouched. Map keys for Routes and StartEndCoords are the day number
// formatted as a string; Places is keyed by place name.
type EnrichedData struct {
	GeocodingHints map[string]GeocodingHint    `json:"geocoding_hints,omitempty"`
	Routes         map[string]*RouteResult     `json:"routes,omitempty"`
	Places         map[string]KnowledgeRecord  `json:"places,omitempty"`
	StartEndCoords map[string]DayEndpoints     `json:"start_end_coords,omitempty"`
	HTMLPreview    string                      `json:"html_preview,omitempty"`
}

// Merge copies the sections set on patch over e, preserving every section the
// patch leaves unset. A Routes map containing nil values is still a set
// section (a day with no computable route stores an explicit null).
func (e *EnrichedData) Merge(patch EnrichedData) {
	if patch.GeocodingHints != nil {
		e.GeocodingHints = patch.GeocodingHints
	}
	if patch.Routes != nil {
		e.Routes = patch.Routes
	}
	if patch.Places != nil {
		e.Places = patch.Places
	}
	if patch.StartEndCoords != nil {
		e.StartEndCoords = patch.StartEndCoords
	}
	if patch.HTMLPreview != "" {
		e.HTMLPreview = patch.HTMLPreview
	}
}

// Request/Response types for the trips API

type PlaceInput struct {
	Name     string        `json:"name"`
	Category PlaceCategory `json:"category"`
	City     string        `json:"city,omitempty"`
	Country  string        `json:"country,omitempty"`
}

type DayInput struct {
	DayNumber     int          `json:"day_number"`
	StartLocation *string      `json:"start_location,omitempty"`
	EndLocation   *string      `json:"end_location,omitempty"`
	Places        []PlaceInput `json:"places"`
}

type TripCreateRequest struct {
	Title     string     `json:"title"`
	StartDate *string    `json:"start_date,omitempty"`
	EndDate   *string    `json:"end_date,omitempty"`
	Days      []DayInput `json:"days"`
}

type TripCreateResponse struct {
	ID     uuid.UUID  `json:"id"`
	Status TripStatus `json:"status"`
}

type PlaceResponse struct {
	Name      string        `json:"name"`
	Category  PlaceCategory `json:"category"`
	Latitude  *float64      `json:"latitude"`
	Longitude *float64      `json:"longitude"`
}

type DayResponse struct {
	DayNumber     int             `json:"day_number"`
	StartLocation *string         `json:"start_location"`
	EndLocation   *string         `json:"end_location"`
	Places        []PlaceResponse `json:"places"`
	Route         *RouteResult    `json:"route"`
}

type TripResponse struct {
	ID           uuid.UUID     `json:"id"`
	Title        string        `json:"title"`
	StartDate    *string       `json:"start_date"`
	EndDate      *string       `json:"end_date"`
	Status       TripStatus    `json:"status"`
	ErrorMessage *string       `json:"error_message"`
	Days         []DayResponse `json:"days"`
}
