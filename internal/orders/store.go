package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bazari/settlement/internal/escrow"
)

// Store is the slice of the order subsystem's persistence the settlement
// workers need: listing escrow-active orders, recording releases, and
// persisting computed escrow timelines. The rest of the order schema belongs
// to the route layer and is not touched here.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListEscrowActive returns orders that may hold locked escrow funds on
// chain: escrow-active status and a non-null on-chain order id.
func (s *Store) ListEscrowActive(ctx context.Context) ([]escrow.PendingOrder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chain_order_id, COALESCE(auto_release_blocks, 0), estimated_delivery_days, COALESCE(shipping_method, '')
		 FROM orders
		 WHERE status IN ($1, $2) AND chain_order_id IS NOT NULL`,
		string(StatusEscrowed), string(StatusShipped),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query escrow-active orders: %w", err)
	}
	defer rows.Close()

	var pending []escrow.PendingOrder
	for rows.Next() {
		var (
			order        escrow.PendingOrder
			deliveryDays sql.NullInt64
		)
		err := rows.Scan(&order.ID, &order.ChainOrderID, &order.AutoReleaseBlocks, &deliveryDays, &order.ShippingMethod)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if deliveryDays.Valid {
			days := int(deliveryDays.Int64)
			order.EstimatedDeliveryDays = &days
		}
		pending = append(pending, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	return pending, nil
}

// MarkReleased moves an order to RELEASED and stamps the release tx hash.
func (s *Store) MarkReleased(ctx context.Context, orderID uuid.UUID, txHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, release_tx_hash = $2, updated_at = $3
		 WHERE id = $4 AND status IN ($5, $6)`,
		string(StatusReleased), txHash, time.Now(), orderID,
		string(StatusEscrowed), string(StatusShipped),
	)
	if err != nil {
		return fmt.Errorf("failed to mark order released: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("order %s not in an escrow-active state", orderID)
	}

	return nil
}

// AppendEscrowLog writes an audit row for an escrow lifecycle event.
func (s *Store) AppendEscrowLog(ctx context.Context, orderID uuid.UUID, kind string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal escrow log payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO escrow_logs (id, order_id, kind, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), orderID, kind, body, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to append escrow log: %w", err)
	}

	return nil
}

// SaveTimeline persists a computed escrow timeline onto an order. Called at
// order creation and again if the declared delivery estimate is edited
// before shipment; the timeline is immutable otherwise.
func (s *Store) SaveTimeline(ctx context.Context, orderID uuid.UUID, tl escrow.Timeline) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE orders
		 SET auto_release_blocks = $1, auto_release_at = $2, estimated_delivery_at = $3, updated_at = $4
		 WHERE id = $5`,
		tl.AutoReleaseBlocks, tl.AutoReleaseDate, tl.EstimatedDeliveryDate, time.Now(), orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to save escrow timeline: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("order %s not found", orderID)
	}

	return nil
}
