package reply

import "strings"

const attributionDash = "—"

// Lines inserted by the review platform when it machine-translates a review.
// Everything from the marker line onward is translation noise, not review text.
var translationMarkers = []string{
	"(Translated by Google)",
	"(Übersetzt von Google)",
}

// Attribution footers arrive with whatever dash the upstream system used.
var attributionPrefixes = []string{"—", "–", "-"}

// Normalize canonicalizes review text: the trailing translation block is cut,
// and a trailing run of attribution footer lines collapses to the last one.
// Normalize(Normalize(x)) == Normalize(x); upstream systems resubmit the same
// review wrapped slightly differently, so the canonical form must be a fixpoint.
func Normalize(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	text = stripTranslationBlock(text)

	lines := strings.Split(text, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	end := len(lines)
	start := end
	for start > 0 && IsAttributionLine(lines[start-1]) {
		start--
	}
	if end-start > 1 {
		// Keep only the last footer; never let footers stack up.
		lines = append(lines[:start], lines[end-1])
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Compose normalizes raw and appends one attribution footer built from
// reviewer/reviewedAt, unless a footer line is already present or both
// fields are blank. Composing twice with the same arguments is a no-op.
func Compose(raw, reviewer, reviewedAt string) string {
	text := Normalize(raw)
	if text == "" {
		return ""
	}

	suffix := AttributionLine(reviewer, reviewedAt)
	if suffix == "" {
		return text
	}

	lines := strings.Split(text, "\n")
	if IsAttributionLine(lines[len(lines)-1]) {
		return text
	}

	return text + "\n" + suffix
}

// AttributionLine builds the reviewer footer, e.g. "— Jane Doe, am 2024-01-01".
func AttributionLine(reviewer, reviewedAt string) string {
	parts := make([]string, 0, 2)
	if name := strings.TrimSpace(reviewer); name != "" {
		parts = append(parts, name)
	}
	if date := strings.TrimSpace(reviewedAt); date != "" {
		parts = append(parts, "am "+date)
	}
	if len(parts) == 0 {
		return ""
	}
	return attributionDash + " " + strings.Join(parts, ", ")
}

// IsAttributionLine reports whether a line is a reviewer footer: a dash
// variant followed by free text.
func IsAttributionLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range attributionPrefixes {
		if strings.HasPrefix(trimmed, prefix) && strings.TrimSpace(strings.TrimPrefix(trimmed, prefix)) != "" {
			return true
		}
	}
	return false
}

func stripTranslationBlock(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, marker := range translationMarkers {
			if strings.HasPrefix(trimmed, marker) {
				return strings.Join(lines[:i], "\n")
			}
		}
	}
	return text
}
