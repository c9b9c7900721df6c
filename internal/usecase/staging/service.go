package staging

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/domain/reply"
	"smartreply/internal/errs"
	"smartreply/internal/ports"
)

// tokenBytes gives 192 bits of entropy; the token doubles as the access
// capability, so guessing one must be infeasible.
const tokenBytes = 24

// Service owns the staging ledger: intake, capability-token reads with the
// TTL predicate, and opt-in deletion. Expiry is decided on every read; a row
// past its TTL is reported as absent even while still physically stored.
type Service struct {
	ledger ports.StagingLedger
	uow    ports.UnitOfWork
	ttl    time.Duration
	now    func() time.Time
}

// NewService wires the staging usecases. uow is optional; without it the
// read-and-touch path runs as separate statements.
func NewService(ledger ports.StagingLedger, uow ports.UnitOfWork, ttl time.Duration) *Service {
	return &Service{
		ledger: ledger,
		uow:    uow,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Stage canonicalizes the review text, assigns a fresh capability token and
// persists the record. The returned token is the only handle to the record.
func (s *Service) Stage(ctx context.Context, input reply.PayloadInput) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	if s.ledger == nil {
		return "", errors.New("staging ledger is required")
	}

	payload, err := input.Normalize()
	if err != nil {
		return "", err
	}

	// Upstream systems resubmit reviews with the attribution already baked
	// in; Compose keeps exactly one footer no matter how often that happens.
	payload.Review = reply.Compose(payload.Review, payload.Reviewer, payload.ReviewedAt)

	token, err := newToken()
	if err != nil {
		return "", errs.Wrap(err, "generate staging token")
	}

	record := ports.StagingRecord{
		Token:     token,
		Payload:   payload,
		CreatedAt: s.now().UTC(),
	}

	if err := s.ledger.Create(ctx, record); err != nil {
		return "", errs.Wrap(err, "create staging record")
	}

	missing := payload.MissingPublishFields()
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.staging")),
		"staging record created",
		slog.Bool("publish_ready", len(missing) == 0),
		slog.String("publish_missing", strings.Join(missing, ",")),
	)

	return token, nil
}

// Get returns the record behind a token, applying the TTL predicate on every
// read. Expired and missing tokens are indistinguishable to callers so tokens
// cannot be probed for existence. Usage counters are diagnostics, updated
// best-effort alongside the read.
func (s *Service) Get(ctx context.Context, token string) (ports.StagingRecord, error) {
	if ctx == nil {
		return ports.StagingRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.StagingRecord{}, errs.Wrap(err, "check context")
	}
	if s.ledger == nil {
		return ports.StagingRecord{}, errors.New("staging ledger is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.staging"))
	now := s.now().UTC()

	var record ports.StagingRecord
	op := func(opCtx context.Context) error {
		found, err := s.ledger.Get(opCtx, token)
		if err != nil {
			return err
		}

		if now.After(found.CreatedAt.Add(s.ttl)) {
			logging.Info(logCtx, "staging record expired", slog.Time("created_at", found.CreatedAt))
			return ports.ErrRecordNotFound
		}

		if err := s.ledger.TouchUsage(opCtx, token, now); err != nil {
			logging.Warn(logCtx, "usage counter update failed", slog.Any("err", errs.Loggable(err)))
		}

		record = found
		return nil
	}

	var err error
	if s.uow != nil {
		err = s.uow.WithTx(ctx, op)
	} else {
		err = op(ctx)
	}
	if err != nil {
		return ports.StagingRecord{}, err
	}

	return record, nil
}

// SetGenerated writes the orchestrator output back to the record.
func (s *Service) SetGenerated(ctx context.Context, token string, replies []reply.GeneratedReply) error {
	if s.ledger == nil {
		return errors.New("staging ledger is required")
	}
	return s.ledger.SetGenerated(ctx, token, replies, s.now().UTC())
}

// SetPublishResult records a publish outcome on the record.
func (s *Service) SetPublishResult(ctx context.Context, token string, record reply.PublishRecord) error {
	if s.ledger == nil {
		return errors.New("staging ledger is required")
	}
	return s.ledger.SetPublishResult(ctx, token, record)
}

// Delete removes a record physically. This is an explicit maintenance
// operation, never a side effect of read, generate, or publish.
func (s *Service) Delete(ctx context.Context, token string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s.ledger == nil {
		return errors.New("staging ledger is required")
	}
	return s.ledger.Delete(ctx, token)
}

// PurgeExpired deletes rows past their TTL. Correctness never depends on
// this; the read path already treats them as absent.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if s.ledger == nil {
		return 0, errors.New("staging ledger is required")
	}
	return s.ledger.DeleteExpired(ctx, s.now().UTC().Add(-s.ttl))
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
