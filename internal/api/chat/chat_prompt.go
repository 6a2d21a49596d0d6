package chat

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-travel-book/internal/types"
)

const chatSystemPrompt = `You are a friendly travel planning assistant. Help the user shape a
day-by-day itinerary through conversation.

Guidelines:
- Ask clarifying questions when the destination, dates or pace are unclear.
- Suggest concrete, real places (attractions, restaurants, hotels) rather than
  vague categories.
- Keep each day realistic: a handful of stops, not a marathon.
- When the itinerary feels settled, tell the user they can finalize it to
  generate their travel book.
- Reply in plain conversational text. Never output JSON or code blocks.`

const extractionSystemPrompt = `You convert a travel planning conversation into a structured
itinerary. Respond with a single JSON object and nothing else, following this
schema exactly:

{
  "title": "short trip title",
  "start_date": "YYYY-MM-DD or null",
  "end_date": "YYYY-MM-DD or null",
  "days": [
    {
      "day_number": 1,
      "start_location": "where the day starts, or null",
      "end_location": "where the day ends, or null",
      "places": [
        {
          "name": "place name as discussed",
          "category": "lodging" | "attraction" | "dining",
          "city": "city the place is in",
          "country": "country the place is in"
        }
      ]
    }
  ]
}

Rules:
- Include every place the user agreed on; drop places they rejected.
- At most 5 places per day. Prefer the ones the user showed interest in.
- Always fill city and country for each place so it can be located on a map.
- If the user mentioned where they sleep, include it as a "lodging" place and
  use it as that day's end_location and the next day's start_location.
- If no lodging was mentioned for a day, fall back to the day's city for
  start_location and end_location.
- day_number starts at 1 and increases without gaps.`

// buildConversationPrompt flattens the session history into a single prompt
// with role prefixes, ending on the turn the model should answer.
func buildConversationPrompt(systemPrompt string, messages []types.ConversationMessage) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nConversation so far:\n")
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", msg.Content)
		default:
			fmt.Fprintf(&b, "User: %s\n", msg.Content)
		}
	}
	b.WriteString("Assistant:")
	return b.String()
}

func buildExtractionPrompt(messages []types.ConversationMessage) string {
	var b strings.Builder
	b.WriteString(extractionSystemPrompt)
	b.WriteString("\n\nConversation to convert:\n")
	for _, msg := range messages {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}
