package reply

import (
	"encoding/json"
	"time"
)

// GeneratedReply is one orchestrator result tuple. A failed completion keeps
// its slot in the list with Error set, so batch order stays stable.
type GeneratedReply struct {
	Review   string          `json:"review"`
	Reply    string          `json:"reply"`
	Insights json.RawMessage `json:"insights,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// PublishRecord is the outcome of a publish decision written back to the
// staging ledger.
type PublishRecord struct {
	DryRun    bool            `json:"dry_run"`
	Result    json.RawMessage `json:"result,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
