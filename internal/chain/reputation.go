package chain

import (
	"context"
	"fmt"

	"github.com/bazari/settlement/internal/reputation"
	"github.com/bazari/settlement/pkg/planck"
)

// ReputationAdapter is the one real implementation of
// reputation.ChainAdapter. It converts between the node's JSON store
// representation and strongly typed snapshots at this boundary, once.
type ReputationAdapter struct {
	rpc *Client
}

// NewReputationAdapter wraps an RPC client.
func NewReputationAdapter(rpc *Client) *ReputationAdapter {
	return &ReputationAdapter{rpc: rpc}
}

type storeInfo struct {
	ID         string          `json:"id"`
	Reputation storeReputation `json:"reputation"`
}

type storeReputation struct {
	Sales        uint64 `json:"sales"`
	Positive     uint64 `json:"positive"`
	Negative     uint64 `json:"negative"`
	VolumePlanck string `json:"volumePlanck"`
}

// Fetch reads a store's current reputation counters. A missing store is
// valid absence: found=false with a nil error.
func (a *ReputationAdapter) Fetch(ctx context.Context, storeID string) (reputation.Snapshot, bool, error) {
	var info *storeInfo
	if err := a.rpc.Call(ctx, "stores_getStore", []interface{}{storeID}, &info); err != nil {
		return reputation.Snapshot{}, false, err
	}
	if info == nil {
		return reputation.Snapshot{}, false, nil
	}

	volume := planck.Zero
	if info.Reputation.VolumePlanck != "" {
		parsed, err := planck.FromString(info.Reputation.VolumePlanck)
		if err != nil {
			return reputation.Snapshot{}, false, fmt.Errorf("store %s has malformed volume: %w", storeID, err)
		}
		volume = parsed
	}

	return reputation.Snapshot{
		Sales:        info.Reputation.Sales,
		Positive:     info.Reputation.Positive,
		Negative:     info.Reputation.Negative,
		VolumePlanck: volume,
	}, true, nil
}

// Bump submits the bump_reputation extrinsic. All-zero deltas are dropped
// before touching the wire; callers pre-filter, this is defense in depth.
func (a *ReputationAdapter) Bump(ctx context.Context, storeID string, delta reputation.Snapshot) error {
	if delta.IsZero() {
		return nil
	}

	params := []interface{}{
		storeID,
		fmt.Sprintf("%d", delta.Sales),
		fmt.Sprintf("%d", delta.Positive),
		fmt.Sprintf("%d", delta.Negative),
		delta.VolumePlanck.String(),
	}

	var txHash string
	if err := a.rpc.Call(ctx, "stores_bumpReputation", params, &txHash); err != nil {
		return fmt.Errorf("bump for store %s failed: %w", storeID, err)
	}
	return nil
}
