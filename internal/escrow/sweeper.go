package escrow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bazari/settlement/pkg/messaging"
)

// Escrow statuses as reported by the chain.
const (
	EscrowStatusLocked   = "Locked"
	EscrowStatusReleased = "Released"
	EscrowStatusRefunded = "Refunded"
	EscrowStatusDisputed = "Disputed"
)

// EscrowInfo is the on-chain escrow state for one order.
type EscrowInfo struct {
	Status        string
	LockedAtBlock uint64
}

// EscrowChain is the capability interface over the chain's escrow pallet.
type EscrowChain interface {
	// CurrentBlock returns the best block height.
	CurrentBlock(ctx context.Context) (uint64, error)

	// Escrow reads escrow state for an on-chain order id. found=false
	// with a nil error means no escrow exists for the order.
	Escrow(ctx context.Context, chainOrderID uint64) (info EscrowInfo, found bool, err error)

	// HasActiveDispute reports whether an unresolved dispute exists for
	// the order.
	HasActiveDispute(ctx context.Context, chainOrderID uint64) (bool, error)

	// Release submits the release extrinsic and returns its tx hash.
	Release(ctx context.Context, chainOrderID uint64) (txHash string, err error)
}

// PendingOrder is an escrow-active order as loaded from the off-chain store.
type PendingOrder struct {
	ID                    uuid.UUID
	ChainOrderID          uint64
	AutoReleaseBlocks     uint64 // 0 when the order predates the column
	EstimatedDeliveryDays *int
	ShippingMethod        string
}

// OrderStore is the off-chain side of the sweep: listing candidates and
// recording outcomes.
type OrderStore interface {
	ListEscrowActive(ctx context.Context) ([]PendingOrder, error)
	MarkReleased(ctx context.Context, orderID uuid.UUID, txHash string) error
	AppendEscrowLog(ctx context.Context, orderID uuid.UUID, kind string, payload interface{}) error
}

// Escrow log kinds written by the sweeper.
const (
	LogKindAutoRelease      = "AUTO_RELEASE"
	LogKindAutoReleaseError = "AUTO_RELEASE_ERROR"
)

// SweepStats summarizes one sweep.
type SweepStats struct {
	Checked  int       `json:"checked"`
	Released int       `json:"released"`
	Skipped  int       `json:"skipped"`
	Errors   int       `json:"errors"`
	LastRun  time.Time `json:"last_run"`
}

// SweeperConfig controls a sweep run.
type SweeperConfig struct {
	DryRun      bool
	CallTimeout time.Duration
}

// Sweeper releases escrows whose delivery-aware deadline has elapsed. It is
// deliberately conservative: an escrow is only released when its on-chain
// status is Locked, no active dispute exists, and the dispute check itself
// succeeded. Any uncertainty skips the order; the next sweep retries.
type Sweeper struct {
	store  OrderStore
	chain  EscrowChain
	calc   *Calculator
	events *messaging.Client
	logger *log.Logger
	cfg    SweeperConfig

	mu      sync.Mutex
	running bool
	last    SweepStats
}

// NewSweeper wires a sweeper from its collaborators. events may be nil.
func NewSweeper(store OrderStore, chain EscrowChain, calc *Calculator, events *messaging.Client, logger *log.Logger, cfg SweeperConfig) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		store:  store,
		chain:  chain,
		calc:   calc,
		events: events,
		logger: logger,
		cfg:    cfg,
	}
}

// Stats returns the stats of the most recent completed sweep.
func (s *Sweeper) Stats() SweepStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run executes one sweep. A single order's failure never aborts the sweep.
func (s *Sweeper) Run(ctx context.Context) (SweepStats, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return s.last, fmt.Errorf("sweep already in progress")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	stats := SweepStats{LastRun: time.Now()}

	currentBlock, err := chainCall(s, ctx, func(cctx context.Context) (uint64, error) {
		return s.chain.CurrentBlock(cctx)
	})
	if err != nil {
		return stats, fmt.Errorf("failed to read current block: %w", err)
	}

	pending, err := s.store.ListEscrowActive(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list escrow-active orders: %w", err)
	}

	for _, order := range pending {
		if ctx.Err() != nil {
			break
		}
		stats.Checked++
		s.sweepOrder(ctx, order, currentBlock, &stats)
	}

	s.logger.Printf("[escrow-sweep] checked=%d released=%d skipped=%d errors=%d",
		stats.Checked, stats.Released, stats.Skipped, stats.Errors)

	s.mu.Lock()
	s.last = stats
	s.mu.Unlock()

	return stats, ctx.Err()
}

func (s *Sweeper) sweepOrder(ctx context.Context, order PendingOrder, currentBlock uint64, stats *SweepStats) {
	info, found, err := s.callEscrow(ctx, order.ChainOrderID)
	if err != nil {
		s.logger.Printf("[escrow-sweep] order=%s escrow query failed: %v", order.ID, err)
		stats.Errors++
		return
	}
	if !found || info.Status != EscrowStatusLocked {
		stats.Skipped++
		return
	}

	// Even with a Locked escrow there may be a pending dispute. If the
	// probe fails we must not release: skipping is the safe direction.
	disputed, err := chainCall(s, ctx, func(cctx context.Context) (bool, error) {
		return s.chain.HasActiveDispute(cctx, order.ChainOrderID)
	})
	if err != nil {
		s.logger.Printf("[escrow-sweep] order=%s dispute check failed, skipping for safety: %v", order.ID, err)
		stats.Skipped++
		return
	}
	if disputed {
		s.logger.Printf("[escrow-sweep] order=%s has an active dispute, skipping", order.ID)
		stats.Skipped++
		return
	}

	releaseBlocks := order.AutoReleaseBlocks
	if releaseBlocks == 0 {
		// Orders created before the deadline column was persisted fall
		// back to a fresh calculation from their delivery fields.
		releaseBlocks = s.calc.AutoReleaseBlocks(order.EstimatedDeliveryDays, order.ShippingMethod)
	}

	elapsed := uint64(0)
	if currentBlock > info.LockedAtBlock {
		elapsed = currentBlock - info.LockedAtBlock
	}
	if elapsed < releaseBlocks {
		stats.Skipped++
		return
	}

	if s.cfg.DryRun {
		s.logger.Printf("[escrow-sweep] order=%s due for release (dry run)", order.ID)
		stats.Skipped++
		return
	}

	txHash, err := chainCall(s, ctx, func(cctx context.Context) (string, error) {
		return s.chain.Release(cctx, order.ChainOrderID)
	})
	if err != nil {
		s.logger.Printf("[escrow-sweep] order=%s release failed: %v", order.ID, err)
		stats.Errors++
		if logErr := s.store.AppendEscrowLog(ctx, order.ID, LogKindAutoReleaseError, map[string]interface{}{
			"chain_order_id": order.ChainOrderID,
			"error":          err.Error(),
			"blocks_elapsed": elapsed,
			"timestamp":      time.Now().UTC(),
		}); logErr != nil {
			s.logger.Printf("[escrow-sweep] order=%s failed to append escrow log: %v", order.ID, logErr)
		}
		s.events.Publish(ctx, messaging.SubjectEscrowReleaseFailed, messaging.EscrowReleaseFailedEvent{
			OrderID:      order.ID,
			ChainOrderID: order.ChainOrderID,
			Reason:       err.Error(),
			FailedAt:     time.Now().UTC(),
		})
		return
	}

	if err := s.store.MarkReleased(ctx, order.ID, txHash); err != nil {
		// Chain release went through; the off-chain row will be healed
		// by the next reconciliation-side consumer of chain state.
		s.logger.Printf("[escrow-sweep] order=%s released on chain but off-chain update failed: %v", order.ID, err)
		stats.Errors++
		return
	}

	if logErr := s.store.AppendEscrowLog(ctx, order.ID, LogKindAutoRelease, map[string]interface{}{
		"chain_order_id":      order.ChainOrderID,
		"tx_hash":             txHash,
		"locked_at":           info.LockedAtBlock,
		"released_at":         currentBlock,
		"blocks_elapsed":      elapsed,
		"auto_release_blocks": releaseBlocks,
		"timestamp":           time.Now().UTC(),
	}); logErr != nil {
		// The release itself succeeded; only the audit row is missing.
		s.logger.Printf("[escrow-sweep] order=%s failed to append escrow log: %v", order.ID, logErr)
	}

	s.events.Publish(ctx, messaging.SubjectEscrowReleased, messaging.EscrowReleasedEvent{
		OrderID:         order.ID,
		ChainOrderID:    order.ChainOrderID,
		TxHash:          txHash,
		LockedAtBlock:   info.LockedAtBlock,
		ReleasedAtBlock: currentBlock,
		BlocksElapsed:   elapsed,
		ReleasedAt:      time.Now().UTC(),
	})

	stats.Released++
}

func (s *Sweeper) callEscrow(ctx context.Context, chainOrderID uint64) (EscrowInfo, bool, error) {
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}
	return s.chain.Escrow(ctx, chainOrderID)
}

// chainCall runs one chain call under the configured per-call timeout.
func chainCall[T any](s *Sweeper, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}
	return fn(ctx)
}
