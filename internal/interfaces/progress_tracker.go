package interfaces

import (
	"context"
	"encoding/json"
	"time"
)

// CascadeRecord is the progress of one cascade run, stored until it completes
// so that an interrupted cascade can be found and replayed.
type CascadeRecord struct {
	Key            string          `json:"key"`
	EventName      string          `json:"event_name"`
	ContributionID string          `json:"contribution_id"`
	Payload        json.RawMessage `json:"payload"`
	CompletedSteps []string        `json:"completed_steps"`
	StartedAt      time.Time       `json:"started_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ProgressTracker stores CascadeRecords. Start is a no-op for a key that is
// already tracked so that a replayed cascade keeps its recorded progress.
type ProgressTracker interface {
	Start(ctx context.Context, record CascadeRecord) error
	Advance(ctx context.Context, key, step string) error
	Finish(ctx context.Context, key string) error
	Incomplete(ctx context.Context) ([]CascadeRecord, error)
}
