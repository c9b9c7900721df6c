package reply

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Section markers the model is instructed to emit. The public reply label is
// optional; the insights marker separates the private analysis section.
const (
	publicReplyLabel = "### ANTWORT"
	insightsMarker   = "### INTERNE INSIGHTS"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Split parses raw model output into the public reply and an optional
// insights JSON document. Insights are best-effort telemetry: any parse
// problem yields nil insights, never an error, and the public reply is
// returned regardless.
func Split(raw string) (string, json.RawMessage) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", nil
	}

	public := text
	var insights json.RawMessage

	if idx := strings.Index(text, insightsMarker); idx >= 0 {
		public = text[:idx]
		insights = extractInsights(text[idx+len(insightsMarker):])
	}

	return strings.TrimSpace(stripReplyLabel(public)), insights
}

func stripReplyLabel(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, publicReplyLabel) {
		return trimmed[len(publicReplyLabel):]
	}
	return trimmed
}

func extractInsights(section string) json.RawMessage {
	var candidate string
	if m := fencedJSONPattern.FindStringSubmatch(section); m != nil {
		candidate = strings.TrimSpace(m[1])
	} else {
		candidate = firstBraceBlock(section)
	}

	if candidate == "" || !json.Valid([]byte(candidate)) {
		return nil
	}
	return json.RawMessage(candidate)
}

// firstBraceBlock returns the first balanced {...} substring, honoring JSON
// string escapes so braces inside strings don't confuse the depth count.
func firstBraceBlock(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}
