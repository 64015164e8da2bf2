package reputation

import "github.com/bazari/settlement/pkg/planck"

// Snapshot holds the reputation counters for a single store. The same shape
// is used for the off-chain observed totals, the on-chain state read through
// the chain adapter, and the delta between them.
type Snapshot struct {
	Sales        uint64        `json:"sales"`
	Positive     uint64        `json:"positive"`
	Negative     uint64        `json:"negative"`
	VolumePlanck planck.Amount `json:"volume_planck"`
}

// IsZero reports whether every counter is zero.
func (s Snapshot) IsZero() bool {
	return s.Sales == 0 && s.Positive == 0 && s.Negative == 0 && s.VolumePlanck.IsZero()
}

// Delta computes the increment still to be applied on-chain: each field is
// the off-chain total minus the on-chain value, floored at zero. On-chain
// state is monotonically non-decreasing and is never corrected downward; if
// the off-chain side ever regresses below it (e.g. after a rollback) the
// delta is simply zero for that field.
//
// A nil onchain means the store has never been bumped, so the delta is the
// full off-chain total.
func Delta(offchain Snapshot, onchain *Snapshot) Snapshot {
	if onchain == nil {
		return offchain
	}
	return Snapshot{
		Sales:        floorSub(offchain.Sales, onchain.Sales),
		Positive:     floorSub(offchain.Positive, onchain.Positive),
		Negative:     floorSub(offchain.Negative, onchain.Negative),
		VolumePlanck: offchain.VolumePlanck.FloorSub(onchain.VolumePlanck),
	}
}

func floorSub(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return 0
}
