package generate

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/domain/reply"
	"smartreply/internal/errs"
	"smartreply/internal/ports"
)

// MaxReviews caps one generation call; excess entries are dropped, not rejected.
const MaxReviews = 10

// TemplateSource hands out the current prompt template. The serve path backs
// this with a hot-reloading file store.
type TemplateSource interface {
	Current() reply.Template
}

// RecordSource is the slice of the staging service the orchestrator needs.
type RecordSource interface {
	Get(ctx context.Context, token string) (ports.StagingRecord, error)
	SetGenerated(ctx context.Context, token string, replies []reply.GeneratedReply) error
}

// Service runs the generation pipeline: assemble prompt, call the completion
// collaborator, split the output, and (with a token) write the results back
// to the staging ledger.
type Service struct {
	records   RecordSource
	completer ports.Completer
	templates TemplateSource
}

func NewService(records RecordSource, completer ports.Completer, templates TemplateSource) *Service {
	return &Service{
		records:   records,
		completer: completer,
		templates: templates,
	}
}

// Values are the form-level generation settings shared by all entries.
type Values struct {
	SelectedTone       string
	CorporateSignature string
	ContactEmail       string
	LanguageMode       string
}

// ReviewInput is one review to answer, with optional per-entry overrides.
type ReviewInput struct {
	Review     string
	Rating     string
	ReviewType string
	Salutation string
}

type Input struct {
	Token   string
	Values  Values
	Reviews []ReviewInput
}

// Generate processes up to MaxReviews entries. A token forces single-review
// mode: only the first non-empty entry is handled even if a caller attached
// stray extra fields. One failed completion does not abort the batch; the
// entry keeps its slot with Error set and processing continues.
func (s *Service) Generate(ctx context.Context, input Input) ([]reply.GeneratedReply, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	if s.completer == nil {
		return nil, errors.New("completer is required")
	}
	if s.templates == nil {
		return nil, errors.New("template source is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.generate"))

	token := strings.TrimSpace(input.Token)
	if token != "" {
		if s.records == nil {
			return nil, errors.New("record source is required")
		}
		// The token is a capability: it must resolve to a live record
		// before any completion work happens on its behalf.
		if _, err := s.records.Get(ctx, token); err != nil {
			return nil, err
		}
	}

	entries := nonEmptyEntries(input.Reviews)

	if token != "" && len(entries) > 1 {
		logging.Warn(logCtx, "forcing single-review mode",
			slog.Int("submitted", len(entries)))
		entries = entries[:1]
	}

	template := s.templates.Current()
	out := make([]reply.GeneratedReply, 0, len(entries))

	for _, entry := range entries {
		review := reply.Normalize(entry.Review)
		prompt := template.Assemble(fieldsFor(review, entry, input.Values))

		text, err := s.completer.Complete(ctx, prompt)
		if err != nil {
			logging.Warn(logCtx, "completion failed for entry",
				slog.Any("err", errs.Loggable(err)))
			out = append(out, reply.GeneratedReply{Review: review, Error: err.Error()})
			continue
		}

		public, insights := reply.Split(text)
		out = append(out, reply.GeneratedReply{Review: review, Reply: public, Insights: insights})
	}

	if token != "" {
		if err := s.records.SetGenerated(ctx, token, out); err != nil {
			return nil, errs.Wrap(err, "store generated replies")
		}
	}

	logging.Info(logCtx, "generation finished", slog.Int("entries", len(out)))
	return out, nil
}

// nonEmptyEntries applies the hard cap first, then drops blank reviews, so
// submitting 15 entries processes at most the first 10 submitted slots.
func nonEmptyEntries(reviews []ReviewInput) []ReviewInput {
	if len(reviews) > MaxReviews {
		reviews = reviews[:MaxReviews]
	}

	entries := make([]ReviewInput, 0, len(reviews))
	for _, entry := range reviews {
		if strings.TrimSpace(entry.Review) == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func fieldsFor(review string, entry ReviewInput, values Values) map[string]string {
	return map[string]string{
		"review":             review,
		"rating":             strings.TrimSpace(entry.Rating),
		"reviewType":         strings.TrimSpace(entry.ReviewType),
		"salutation":         strings.TrimSpace(entry.Salutation),
		"selectedTone":       values.SelectedTone,
		"corporateSignature": values.CorporateSignature,
		"contactEmail":       values.ContactEmail,
		"languageMode":       values.LanguageMode,
	}
}
