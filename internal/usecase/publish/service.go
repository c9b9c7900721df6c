package publish

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/domain/reply"
	"smartreply/internal/errs"
	"smartreply/internal/ports"
)

// State is the terminal outcome of one publish attempt.
type State string

const (
	StatePublished State = "published"
	StateNotReady  State = "not_ready"
	StateConflict  State = "conflict"
	StateRejected  State = "rejected"
)

// Rejection reasons surfaced to callers. Expired tokens report not_found on
// purpose: the distinction would let callers probe which tokens ever existed.
const (
	ReasonDisabled       = "publish_disabled"
	ReasonNotFound       = "not_found"
	ReasonNoReplyText    = "no_reply_text"
	ReasonReplyTooLong   = "reply_too_long"
	ReasonPrecheckFailed = "precheck_failed"
	ReasonPublishFailed  = "publish_failed"
)

type Config struct {
	Enabled bool
	DryRun  bool
	// AllowClientReply honors a caller-supplied reply text instead of the
	// generated one. Off by default; only deployments that trust their
	// callers should enable it.
	AllowClientReply bool
	MaxReplyBytes    int
}

// RecordSource is the slice of the staging service the workflow needs.
type RecordSource interface {
	Get(ctx context.Context, token string) (ports.StagingRecord, error)
	SetPublishResult(ctx context.Context, token string, record reply.PublishRecord) error
}

// Service decides and executes the publish of a generated reply against the
// external review platform. Every attempt re-derives its decision from fresh
// reads: the ledger for readiness, the platform for the conflict check. The
// platform is the conflict oracle because its reply field can be mutated
// out-of-band by a human.
type Service struct {
	records  RecordSource
	platform ports.ReviewPlatform
	cfg      Config
	now      func() time.Time
}

func NewService(records RecordSource, platform ports.ReviewPlatform, cfg Config) *Service {
	return &Service{
		records:  records,
		platform: platform,
		cfg:      cfg,
		now:      time.Now,
	}
}

type Input struct {
	Token string
	// Reply overrides the generated text; ignored unless AllowClientReply.
	Reply string
	// Force skips the conflict check and overwrites whatever is there.
	Force bool
}

// Result reports the outcome with enough structure for a caller to
// self-correct: the missing-field list for NotReady, the existing reply and
// its update time for Conflict.
type Result struct {
	State           State                `json:"state"`
	Reason          string               `json:"reason,omitempty"`
	Missing         []string             `json:"missing,omitempty"`
	AlreadyUpToDate bool                 `json:"already_up_to_date,omitempty"`
	DryRun          bool                 `json:"dry_run,omitempty"`
	Existing        *ports.ExternalReply `json:"existing,omitempty"`
	Detail          string               `json:"detail,omitempty"`
}

func rejected(reason, detail string) Result {
	return Result{State: StateRejected, Reason: reason, Detail: detail}
}

// Publish runs the workflow:
//
//	lookup -> readiness -> reply resolution -> size guard -> conflict check -> write
//
// Dependency failures fail closed: if the conflict check cannot be performed,
// no write happens, because a blind overwrite risks clobbering a
// human-authored reply.
func (s *Service) Publish(ctx context.Context, input Input) (Result, error) {
	if ctx == nil {
		return Result{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, errs.Wrap(err, "check context")
	}
	if s.records == nil {
		return Result{}, errors.New("record source is required")
	}
	if s.platform == nil {
		return Result{}, errors.New("review platform is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.publish"))

	if !s.cfg.Enabled {
		return rejected(ReasonDisabled, ""), nil
	}

	record, err := s.records.Get(ctx, input.Token)
	if err != nil {
		if errors.Is(err, ports.ErrRecordNotFound) {
			return rejected(ReasonNotFound, ""), nil
		}
		return Result{}, errs.Wrap(err, "load staging record")
	}

	if missing := record.Payload.MissingPublishFields(); len(missing) > 0 {
		return Result{State: StateNotReady, Missing: missing}, nil
	}

	replyText := s.resolveReply(input, record)
	if replyText == "" {
		return rejected(ReasonNoReplyText, ""), nil
	}

	if len(replyText) > s.cfg.MaxReplyBytes {
		return rejected(ReasonReplyTooLong, ""), nil
	}

	ref := ports.ReviewRef{
		AccountID:  record.Payload.AccountID,
		LocationID: record.Payload.LocationID,
		ReviewID:   record.Payload.ReviewID,
	}

	if !input.Force {
		existing, found, err := s.platform.GetReply(ctx, ref)
		if err != nil {
			logging.Error(logCtx, "conflict check failed", slog.Any("err", errs.Loggable(err)))
			return rejected(ReasonPrecheckFailed, err.Error()), nil
		}
		if found {
			if existing.Comment == replyText {
				// Retries land here: the reply is already live, so there
				// is nothing to write and nothing to record.
				return Result{State: StatePublished, AlreadyUpToDate: true}, nil
			}
			shared := existing
			return Result{State: StateConflict, Existing: &shared}, nil
		}
	}

	if s.cfg.DryRun {
		publishRecord := reply.PublishRecord{DryRun: true, Timestamp: s.now().UTC()}
		if err := s.records.SetPublishResult(ctx, input.Token, publishRecord); err != nil {
			return Result{}, errs.Wrap(err, "record dry-run outcome")
		}
		logging.Info(logCtx, "publish dry run", slog.Int("reply_len", len(replyText)))
		return Result{State: StatePublished, DryRun: true}, nil
	}

	result, err := s.platform.PutReply(ctx, ref, replyText)
	if err != nil {
		logging.Error(logCtx, "publish call failed", slog.Any("err", errs.Loggable(err)))
		return rejected(ReasonPublishFailed, err.Error()), nil
	}

	publishRecord := reply.PublishRecord{DryRun: false, Result: result, Timestamp: s.now().UTC()}
	if err := s.records.SetPublishResult(ctx, input.Token, publishRecord); err != nil {
		// The reply is live on the platform; the platform read is the
		// source of truth for retries, so a failed ledger write is logged
		// rather than turned into a publish failure.
		logging.Error(logCtx, "publish outcome not recorded", slog.Any("err", errs.Loggable(err)))
	}

	logging.Info(logCtx, "reply published", slog.Int("reply_len", len(replyText)))
	return Result{State: StatePublished}, nil
}

// resolveReply prefers a caller override when allowed, then the first
// non-empty generated reply.
func (s *Service) resolveReply(input Input, record ports.StagingRecord) string {
	if s.cfg.AllowClientReply {
		if text := strings.TrimSpace(input.Reply); text != "" {
			return text
		}
	}

	for _, generated := range record.Generated {
		if text := strings.TrimSpace(generated.Reply); text != "" {
			return text
		}
	}
	return ""
}
