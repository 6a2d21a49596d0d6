package generativeAI

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// AIClient wraps the text-completion service. The same client serves chat
// replies, structured itinerary extraction (JSON mode) and alternate-name
// suggestion; only the prompts and response mode differ.
type AIClient struct {
	client *genai.Client
	model  string
}

func NewAIClient(ctx context.Context) (*AIClient, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &AIClient{
		client: client,
		model:  defaultModel,
	}, nil
}

// GenerateResponse sends a single prompt and returns the model's text reply.
func (ai *AIClient) GenerateResponse(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return result.Text(), nil
}

// GenerateJSON sends a prompt in forced-JSON response mode and returns the raw
// JSON text. Callers still run the reply through cleanJSONResponse-style
// stripping since some models wrap output in markdown fences regardless.
func (ai *AIClient) GenerateJSON(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	if config == nil {
		config = &genai.GenerateContentConfig{}
	}
	config.ResponseMIMEType = "application/json"
	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON content: %w", err)
	}
	return result.Text(), nil
}
