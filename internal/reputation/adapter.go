package reputation

import "context"

// ChainAdapter is the narrow capability interface over the on-chain
// reputation store. Exactly one implementation talks to the real chain
// (internal/chain); tests substitute a fake.
type ChainAdapter interface {
	// Fetch reads the current on-chain counters for a store. found=false
	// with a nil error means the store has never been bumped, which is a
	// valid state, not an error. Any non-nil error is transient/infra.
	Fetch(ctx context.Context, storeID string) (rep Snapshot, found bool, err error)

	// Bump applies a non-negative delta to a store's counters. An
	// all-zero delta must be a no-op without side effects.
	Bump(ctx context.Context, storeID string, delta Snapshot) error
}
