package ports

import (
	"context"
	"errors"
	"time"

	"smartreply/internal/domain/reply"
)

var ErrRecordNotFound = errors.New("staging record not found")

// StagingRecord tracks one review from intake to (optional) publish. The
// token is a bearer capability: holding it grants access to the record.
type StagingRecord struct {
	Token     string
	Payload   reply.Payload
	CreatedAt time.Time
	Generated []reply.GeneratedReply
	Publish   *reply.PublishRecord
	UsedCount int
	UsedAt    *time.Time
}

// StagingLedger is the persistence port for staging records. Implementations
// store rows verbatim; expiry is a read-time predicate applied by the caller,
// not a storage concern.
type StagingLedger interface {
	Create(ctx context.Context, record StagingRecord) error
	Get(ctx context.Context, token string) (StagingRecord, error)
	// SetGenerated and SetPublishResult are partial updates: sibling fields
	// written by concurrent requests must survive untouched.
	SetGenerated(ctx context.Context, token string, replies []reply.GeneratedReply, at time.Time) error
	SetPublishResult(ctx context.Context, token string, record reply.PublishRecord) error
	TouchUsage(ctx context.Context, token string, at time.Time) error
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, createdBefore time.Time) (int64, error)
}
