package chat

import "strings"

// cleanJSONResponse removes markdown code fences the model sometimes wraps
// around JSON output even in forced-JSON mode.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
