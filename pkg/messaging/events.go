package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Event subjects published by the settlement workers.
const (
	SubjectReputationSyncCompleted = "reputation.sync.completed"
	SubjectEscrowReleased          = "escrow.released"
	SubjectEscrowReleaseFailed     = "escrow.release.failed"
)

// ReputationSyncEvent summarizes one reconciliation run for operator
// monitoring consumers.
type ReputationSyncEvent struct {
	RunID     uuid.UUID     `json:"run_id"`
	Processed int           `json:"processed"`
	Updated   int           `json:"updated"`
	Noops     int           `json:"noops"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	DryRun    bool          `json:"dry_run"`
	Duration  time.Duration `json:"duration_ns"`
	StartedAt time.Time     `json:"started_at"`
}

// EscrowReleasedEvent is published after a successful on-chain auto-release.
type EscrowReleasedEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	ChainOrderID    uint64    `json:"chain_order_id"`
	TxHash          string    `json:"tx_hash,omitempty"`
	LockedAtBlock   uint64    `json:"locked_at_block"`
	ReleasedAtBlock uint64    `json:"released_at_block"`
	BlocksElapsed   uint64    `json:"blocks_elapsed"`
	ReleasedAt      time.Time `json:"released_at"`
}

// EscrowReleaseFailedEvent is published when a due release could not be
// submitted; the order stays escrowed and is retried on the next sweep.
type EscrowReleaseFailedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	ChainOrderID uint64    `json:"chain_order_id"`
	Reason       string    `json:"reason"`
	FailedAt     time.Time `json:"failed_at"`
}
