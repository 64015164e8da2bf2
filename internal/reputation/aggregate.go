package reputation

import (
	"context"

	"github.com/google/uuid"

	"github.com/bazari/settlement/pkg/planck"
)

// Seller is one row from the off-chain seller listing: a seller that has an
// on-chain store identity, plus its persisted rating aggregate. Sellers
// without an on-chain store id are excluded from reconciliation at the
// source and never reach the runner.
type Seller struct {
	ID          uuid.UUID
	StoreID     string // on-chain store id, stringified for the chain RPC
	RatingAvg   float64
	RatingCount int
}

// OrderTotals is the confirmed-sale aggregate for one seller: the count and
// summed volume of orders that reached the RELEASED state. Orders in
// transient or failed states never contribute.
type OrderTotals struct {
	Sales        uint64
	VolumePlanck planck.Amount
}

// AggregateSource reads the off-chain side of the reconciliation. It is a
// pure read interface over the order/feedback subsystem's persisted records;
// aggregates are recomputed fresh on every run, never cached.
type AggregateSource interface {
	// ListSellers returns every seller with a non-null on-chain store id.
	ListSellers(ctx context.Context) ([]Seller, error)

	// OrderTotals returns per-seller confirmed-order aggregates for the
	// given sellers. Sellers with no confirmed orders may be absent from
	// the result map.
	OrderTotals(ctx context.Context, sellerIDs []uuid.UUID) (map[uuid.UUID]OrderTotals, error)
}

// Totals assembles the full off-chain snapshot for a seller from its order
// aggregate and estimated feedback buckets.
func Totals(orders OrderTotals, ratingAvg float64, ratingCount int) Snapshot {
	positive, negative := EstimateFeedback(ratingAvg, ratingCount)
	return Snapshot{
		Sales:        orders.Sales,
		Positive:     positive,
		Negative:     negative,
		VolumePlanck: orders.VolumePlanck,
	}
}
