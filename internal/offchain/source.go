package offchain

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bazari/settlement/internal/orders"
	"github.com/bazari/settlement/internal/reputation"
	"github.com/bazari/settlement/pkg/planck"
)

// Source implements reputation.AggregateSource over the relational ledger.
// It reads the seller listing and confirmed-order aggregates the order and
// feedback subsystems already persist; nothing is cached between runs.
type Source struct {
	db *sql.DB
}

// NewSource creates a source over an open database handle.
func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

// ListSellers returns every seller profile with an on-chain store id.
func (s *Source) ListSellers(ctx context.Context) ([]reputation.Seller, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, on_chain_store_id, COALESCE(rating_avg, 0), COALESCE(rating_count, 0)
		 FROM seller_profiles
		 WHERE on_chain_store_id IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query seller profiles: %w", err)
	}
	defer rows.Close()

	var sellers []reputation.Seller
	for rows.Next() {
		var (
			seller  reputation.Seller
			storeID uint64
		)
		if err := rows.Scan(&seller.ID, &storeID, &seller.RatingAvg, &seller.RatingCount); err != nil {
			return nil, fmt.Errorf("failed to scan seller profile: %w", err)
		}
		seller.StoreID = fmt.Sprintf("%d", storeID)
		sellers = append(sellers, seller)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seller profiles: %w", err)
	}

	return sellers, nil
}

// OrderTotals aggregates confirmed sales per seller in one grouped query.
// Volume is summed in the database and scanned as a numeric string so u128
// totals survive intact.
func (s *Source) OrderTotals(ctx context.Context, sellerIDs []uuid.UUID) (map[uuid.UUID]reputation.OrderTotals, error) {
	totals := make(map[uuid.UUID]reputation.OrderTotals, len(sellerIDs))
	if len(sellerIDs) == 0 {
		return totals, nil
	}

	ids := make([]string, 0, len(sellerIDs))
	for _, id := range sellerIDs {
		ids = append(ids, id.String())
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seller_store_id, COUNT(*), COALESCE(SUM(total_planck), 0)::text
		 FROM orders
		 WHERE seller_store_id = ANY($1) AND status = $2
		 GROUP BY seller_store_id`,
		pq.Array(ids), string(orders.StatusReleased),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate confirmed orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sellerID uuid.UUID
			count    uint64
			volume   string
		)
		if err := rows.Scan(&sellerID, &count, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan order aggregate: %w", err)
		}

		amount, err := planck.FromString(volume)
		if err != nil {
			return nil, fmt.Errorf("invalid volume for seller %s: %w", sellerID, err)
		}

		totals[sellerID] = reputation.OrderTotals{
			Sales:        count,
			VolumePlanck: amount,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order aggregates: %w", err)
	}

	return totals, nil
}
