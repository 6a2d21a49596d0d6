package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	generativeAI "github.com/FACorreiaa/go-travel-book/internal/api/generative_ai"
)

func getNameVariantsPrompt(place, city, country string) string {
	return fmt.Sprintf(`The place "%s" in %s, %s could not be found on a map search.

Suggest up to 3 alternative names this place might be listed under, such as:
- its official or full name
- its name in the local language
- a common alias or former name

Return ONLY a JSON array of strings, for example: ["name one", "name two"].
Do not include the original name. Return [] if you cannot suggest anything.`, place, city, country)
}

var _ VariantSuggester = (*LLMVariantSuggester)(nil)

// LLMVariantSuggester asks the language model for alternate names of a place
// that failed to geocode.
type LLMVariantSuggester struct {
	logger *slog.Logger
	ai     *generativeAI.AIClient
}

func NewLLMVariantSuggester(ai *generativeAI.AIClient, logger *slog.Logger) *LLMVariantSuggester {
	return &LLMVariantSuggester{logger: logger, ai: ai}
}

func (v *LLMVariantSuggester) SuggestNameVariants(ctx context.Context, place, city, country string) ([]string, error) {
	raw, err := v.ai.GenerateJSON(ctx, getNameVariantsPrompt(place, city, country), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate name variants: %w", err)
	}

	var variants []string
	if err := json.Unmarshal([]byte(cleanJSONResponse(raw)), &variants); err != nil {
		return nil, fmt.Errorf("failed to parse name variants response: %w", err)
	}
	if len(variants) > maxNameVariants {
		variants = variants[:maxNameVariants]
	}
	return variants, nil
}
