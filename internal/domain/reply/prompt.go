package reply

import (
	"errors"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"smartreply/internal/errs"
)

// Template is an ordered list of conditional prompt lines.
//
// Condition grammar:
//
//	(none)              line is always emitted
//	isset:<field>       field exists and is non-blank after trimming
//	if:<field>=<value>  trimmed field value equals the literal, case-sensitive
//
// Anything else evaluates to false and the line is dropped. That default-deny
// is load-bearing: unknown directives must never leak text into the prompt.
type Template struct {
	Lines []TemplateLine `yaml:"lines"`
}

type TemplateLine struct {
	When string `yaml:"when,omitempty"`
	Text string `yaml:"text"`
}

const reviewLeadIn = "Hier ist die Bewertung, auf die du bitte antwortest:"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

func ParseTemplate(data []byte) (Template, error) {
	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return Template{}, errs.Wrap(err, "parse prompt template")
	}
	if len(tpl.Lines) == 0 {
		return Template{}, errors.New("prompt template has no lines")
	}
	return tpl, nil
}

// Assemble emits the condition-filtered lines in template order with
// {{field}} placeholders substituted, then appends the review text verbatim
// as the final instructional block. The review is not normalized here; that
// already happened when it was staged.
func (t Template) Assemble(fields map[string]string) string {
	blocks := make([]string, 0, len(t.Lines)+1)

	for _, line := range t.Lines {
		if !evalCondition(line.When, fields) {
			continue
		}
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		blocks = append(blocks, substitutePlaceholders(text, fields))
	}

	blocks = append(blocks, reviewLeadIn+"\n\n"+fields["review"])

	return strings.Join(blocks, "\n\n")
}

func evalCondition(cond string, fields map[string]string) bool {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true
	}

	if key, ok := strings.CutPrefix(cond, "isset:"); ok {
		return strings.TrimSpace(fields[key]) != ""
	}

	if expr, ok := strings.CutPrefix(cond, "if:"); ok {
		key, want, found := strings.Cut(expr, "=")
		if !found {
			return false
		}
		return strings.TrimSpace(fields[key]) == want
	}

	return false
}

func substitutePlaceholders(text string, fields map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}"))
		return fields[key]
	})
}
