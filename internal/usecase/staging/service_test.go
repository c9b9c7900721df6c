package staging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"smartreply/internal/domain/reply"
	"smartreply/internal/ports"
)

type fakeLedger struct {
	createFn        func(ctx context.Context, record ports.StagingRecord) error
	getFn           func(ctx context.Context, token string) (ports.StagingRecord, error)
	touchFn         func(ctx context.Context, token string, at time.Time) error
	deleteFn        func(ctx context.Context, token string) error
	deleteExpiredFn func(ctx context.Context, createdBefore time.Time) (int64, error)
}

func (f *fakeLedger) Create(ctx context.Context, record ports.StagingRecord) error {
	return f.createFn(ctx, record)
}

func (f *fakeLedger) Get(ctx context.Context, token string) (ports.StagingRecord, error) {
	return f.getFn(ctx, token)
}

func (f *fakeLedger) SetGenerated(context.Context, string, []reply.GeneratedReply, time.Time) error {
	return nil
}

func (f *fakeLedger) SetPublishResult(context.Context, string, reply.PublishRecord) error {
	return nil
}

func (f *fakeLedger) TouchUsage(ctx context.Context, token string, at time.Time) error {
	if f.touchFn == nil {
		return nil
	}
	return f.touchFn(ctx, token, at)
}

func (f *fakeLedger) Delete(ctx context.Context, token string) error {
	return f.deleteFn(ctx, token)
}

func (f *fakeLedger) DeleteExpired(ctx context.Context, createdBefore time.Time) (int64, error) {
	return f.deleteExpiredFn(ctx, createdBefore)
}

type fakeUnitOfWork struct {
	calls int
}

func (f *fakeUnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

func TestStageComposesFooterAndReturnsToken(t *testing.T) {
	var stored ports.StagingRecord
	ledger := &fakeLedger{
		createFn: func(_ context.Context, record ports.StagingRecord) error {
			stored = record
			return nil
		},
	}
	svc := NewService(ledger, nil, time.Hour)

	token, err := svc.Stage(context.Background(), reply.PayloadInput{
		Review:     "Super Service!",
		Reviewer:   "Max",
		ReviewedAt: "2026-08-01",
	})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if token == "" || token != stored.Token {
		t.Fatalf("token mismatch: %q vs stored %q", token, stored.Token)
	}
	if stored.Payload.Review != "Super Service!\n— Max, am 2026-08-01" {
		t.Fatalf("footer not composed: %q", stored.Payload.Review)
	}
}

func TestStageRejectsInvalidInput(t *testing.T) {
	ledger := &fakeLedger{
		createFn: func(context.Context, ports.StagingRecord) error {
			t.Fatal("must not create a record for invalid input")
			return nil
		},
	}
	svc := NewService(ledger, nil, time.Hour)

	if _, err := svc.Stage(context.Background(), reply.PayloadInput{Review: "  "}); !errors.Is(err, reply.ErrReviewRequired) {
		t.Fatalf("expected ErrReviewRequired, got %v", err)
	}
	if _, err := svc.Stage(context.Background(), reply.PayloadInput{Review: "ok", Rating: "9"}); !errors.Is(err, reply.ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
}

func TestTokensAreLongAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := newToken()
		if err != nil {
			t.Fatalf("newToken: %v", err)
		}
		if len(token) < 32 {
			t.Fatalf("token too short: %q", token)
		}
		if strings.ContainsAny(token, "+/=") {
			t.Fatalf("token not URL safe: %q", token)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token: %q", token)
		}
		seen[token] = struct{}{}
	}
}

func TestGetAppliesTTLOnRead(t *testing.T) {
	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ttl := 3 * time.Hour

	ledger := &fakeLedger{
		getFn: func(_ context.Context, token string) (ports.StagingRecord, error) {
			return ports.StagingRecord{Token: token, CreatedAt: createdAt}, nil
		},
	}
	svc := NewService(ledger, nil, ttl)

	// Exactly at the TTL boundary the record is still live.
	svc.now = func() time.Time { return createdAt.Add(ttl) }
	if _, err := svc.Get(context.Background(), "tok"); err != nil {
		t.Fatalf("record at TTL boundary must be readable: %v", err)
	}

	// One second past the boundary it reads as absent.
	svc.now = func() time.Time { return createdAt.Add(ttl + time.Second) }
	if _, err := svc.Get(context.Background(), "tok"); !errors.Is(err, ports.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound past TTL, got %v", err)
	}
}

func TestGetExpiredLooksLikeMissing(t *testing.T) {
	ledger := &fakeLedger{
		getFn: func(context.Context, string) (ports.StagingRecord, error) {
			return ports.StagingRecord{}, ports.ErrRecordNotFound
		},
	}
	svc := NewService(ledger, nil, time.Hour)

	_, missingErr := svc.Get(context.Background(), "never-existed")

	expired := &fakeLedger{
		getFn: func(_ context.Context, token string) (ports.StagingRecord, error) {
			return ports.StagingRecord{Token: token, CreatedAt: time.Now().UTC().Add(-2 * time.Hour)}, nil
		},
	}
	svc = NewService(expired, nil, time.Hour)

	_, expiredErr := svc.Get(context.Background(), "expired")

	if !errors.Is(missingErr, ports.ErrRecordNotFound) || !errors.Is(expiredErr, ports.ErrRecordNotFound) {
		t.Fatalf("missing and expired must be indistinguishable: %v vs %v", missingErr, expiredErr)
	}
}

func TestGetTouchFailureIsBestEffort(t *testing.T) {
	ledger := &fakeLedger{
		getFn: func(_ context.Context, token string) (ports.StagingRecord, error) {
			return ports.StagingRecord{Token: token, CreatedAt: time.Now().UTC()}, nil
		},
		touchFn: func(context.Context, string, time.Time) error {
			return errors.New("disk full")
		},
	}
	svc := NewService(ledger, nil, time.Hour)

	if _, err := svc.Get(context.Background(), "tok"); err != nil {
		t.Fatalf("touch failure must not fail the read: %v", err)
	}
}

func TestGetRunsInsideUnitOfWork(t *testing.T) {
	ledger := &fakeLedger{
		getFn: func(_ context.Context, token string) (ports.StagingRecord, error) {
			return ports.StagingRecord{Token: token, CreatedAt: time.Now().UTC()}, nil
		},
	}
	uow := &fakeUnitOfWork{}
	svc := NewService(ledger, uow, time.Hour)

	if _, err := svc.Get(context.Background(), "tok"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if uow.calls != 1 {
		t.Fatalf("expected one transaction, got %d", uow.calls)
	}
}

func TestPurgeExpiredUsesTTLCutoff(t *testing.T) {
	var cutoff time.Time
	ledger := &fakeLedger{
		deleteExpiredFn: func(_ context.Context, createdBefore time.Time) (int64, error) {
			cutoff = createdBefore
			return 2, nil
		},
	}
	svc := NewService(ledger, nil, time.Hour)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	deleted, err := svc.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	if !cutoff.Equal(now.Add(-time.Hour)) {
		t.Fatalf("cutoff = %v, want %v", cutoff, now.Add(-time.Hour))
	}
}

func TestDeleteDelegates(t *testing.T) {
	var deleted string
	ledger := &fakeLedger{
		deleteFn: func(_ context.Context, token string) error {
			deleted = token
			return nil
		},
	}
	svc := NewService(ledger, nil, time.Hour)

	if err := svc.Delete(context.Background(), "tok-x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != "tok-x" {
		t.Fatalf("deleted = %q", deleted)
	}
}
