package ports

import (
	"context"
	"encoding/json"
)

// ReviewRef addresses one review on the external platform.
type ReviewRef struct {
	AccountID  string
	LocationID string
	ReviewID   string
}

// ExternalReply is the platform's view of a review reply. It can be mutated
// out-of-band (a human may answer directly on the platform), which is why the
// publish workflow treats the platform, not the ledger, as the conflict oracle.
type ExternalReply struct {
	Comment    string `json:"comment"`
	UpdateTime string `json:"updateTime"`
}

// ReviewPlatform models the two platform operations this system consumes.
type ReviewPlatform interface {
	GetReply(ctx context.Context, ref ReviewRef) (ExternalReply, bool, error)
	PutReply(ctx context.Context, ref ReviewRef, comment string) (json.RawMessage, error)
}
