package llm

import (
	"encoding/json"
	"log"
	"regexp"
	"strings"
)

const fence = "```"

// jsonBlock matches a ```json fenced block, any fenced block, or the
// outermost brace span, in that order of preference.
var jsonBlock = regexp.MustCompile(
	fence + `json\s*([\s\S]*?)\s*` + fence +
		`|` + fence + `\s*([\s\S]*?)\s*` + fence +
		`|(\{[\s\S]*\})`,
)

// ExtractJSON returns the JSON-looking part of an LLM response.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	m := jsonBlock.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	for _, group := range m[1:] {
		if group != "" {
			return strings.TrimSpace(group)
		}
	}
	return text
}

// ParseJSONResponse parses a JSON response from an LLM, handling markdown
// code blocks and prose around the object.
func ParseJSONResponse(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &result); err != nil {
		log.Printf("Failed to parse LLM response as JSON: %v", err)
		return nil
	}

	return result
}
