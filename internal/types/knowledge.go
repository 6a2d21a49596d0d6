package types

// PlaceholderDescription is returned when every enrichment strategy failed.
const PlaceholderDescription = "No description available."

// KnowledgeRecord is the per-place enrichment result. It is always populated:
// when no article or metadata could be found, Description carries the
// placeholder text and the optional fields stay nil.
type KnowledgeRecord struct {
	Description      string   `json:"description"`
	NativeName       *string  `json:"native_name,omitempty"`
	ImageURL         *string  `json:"image_url"`
	ImageAttribution *string  `json:"image_attribution"`
	ArticleURL       *string  `json:"article_url"`
	ArticleTitle     *string  `json:"article_title,omitempty"`
	// DistanceMeters is how far the selected article's published coordinates
	// are from the place's resolved point, when both were known.
	DistanceMeters *float64 `json:"distance_m,omitempty"`
}
