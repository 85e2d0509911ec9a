// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// \x60 is a backtick; raw strings cannot hold one.
	fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*?})\\s*\x60\x60\x60")
	stripThinkRegex   = regexp.MustCompile("(?s)<think>.*?</think>")
)

// StripThinking drops <think>...</think> blocks some reasoning models prepend to their answer.
func StripThinking(response string) string {
	return strings.TrimSpace(stripThinkRegex.ReplaceAllString(response, ""))
}

// ExtractTagged returns the trimmed body of the first <tag>...</tag> block in response.
func ExtractTagged(response, tag string) (string, bool) {
	open, closing := "<"+tag+">", "</"+tag+">"
	start := strings.Index(response, open)
	if start == -1 {
		return "", false
	}
	rest := response[start+len(open):]
	end := strings.Index(rest, closing)
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// ExtractJSONObject locates a JSON object inside a model reply. It understands markdown fences
// and objects embedded in conversational text.
func ExtractJSONObject(response string) (string, bool) {
	response = StripThinking(response)

	if m := fencedObjectRegex.FindStringSubmatch(response); len(m) > 1 {
		return m[1], true
	}
	if strings.HasPrefix(response, "{") && strings.HasSuffix(response, "}") {
		return response, true
	}

	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first == -1 || last <= first {
		return "", false
	}
	return response[first : last+1], true
}

// ParseJSONResponse extracts a JSON object from a model reply and decodes it into T.
func ParseJSONResponse[T any](response string) (*T, error) {
	raw, ok := ExtractJSONObject(response)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in LLM response: %s", Truncate(response, 200))
	}

	var result T
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, Truncate(raw, 500))
	}
	return &result, nil
}

// Truncate shortens s to at most maxLen bytes, marking the cut with an ellipsis.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
