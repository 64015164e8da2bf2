package reputation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action is the per-seller outcome of a sync run.
type Action string

const (
	ActionUpdated Action = "updated"
	ActionNoop    Action = "noop"
	ActionSkipped Action = "skipped"
	ActionError   Action = "error"
)

// Outcome reasons.
const (
	ReasonUpToDate      = "up_to_date"
	ReasonDryRun        = "dry_run"
	ReasonStoreNotFound = "store_not_found_on_chain"
)

// Entry records the outcome for a single seller.
type Entry struct {
	SellerID uuid.UUID `json:"seller_id"`
	StoreID  string    `json:"store_id"`
	Totals   Snapshot  `json:"totals"`
	Delta    Snapshot  `json:"delta"`
	Action   Action    `json:"action"`
	Reason   string    `json:"reason,omitempty"`
}

// Report aggregates a full sync run. updated+noops+skipped+errors equals the
// number of sellers processed before cancellation.
type Report struct {
	RunID     uuid.UUID     `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	DryRun    bool          `json:"dry_run"`
	Processed int           `json:"processed"`
	Updated   int           `json:"updated"`
	Noops     int           `json:"noops"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Details   []Entry       `json:"details"`

	mu sync.Mutex
}

func newReport(dryRun bool) *Report {
	return &Report{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
		DryRun:    dryRun,
	}
}

// add records an entry. Safe for concurrent use by the worker pool.
func (r *Report) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Processed++
	switch e.Action {
	case ActionUpdated:
		r.Updated++
	case ActionNoop:
		r.Noops++
	case ActionSkipped:
		r.Skipped++
	case ActionError:
		r.Errors++
	}
	r.Details = append(r.Details, e)
}
