package reputation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// RunnerConfig controls a sync run.
type RunnerConfig struct {
	// DryRun computes deltas and reports them without calling Bump.
	DryRun bool

	// Parallelism bounds the worker pool. At most this many sellers are
	// in flight at once; each seller's Fetch and Bump stay in a single
	// goroutine so the pair remains causally ordered. Values below 1 mean
	// sequential.
	Parallelism int64

	// CallTimeout bounds each individual chain call. Zero means no
	// per-call timeout beyond the run context.
	CallTimeout time.Duration
}

// Runner reconciles off-chain seller aggregates against on-chain reputation
// counters, applying only the positive delta. Runs are idempotent: with no
// new off-chain activity every delta is zero and no chain write happens, so
// retried or concurrently scheduled runs are self-correcting.
type Runner struct {
	chain  ChainAdapter
	source AggregateSource
	logger *log.Logger
	cfg    RunnerConfig
}

// NewRunner wires a runner from its collaborators.
func NewRunner(chain ChainAdapter, source AggregateSource, logger *log.Logger, cfg RunnerConfig) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &Runner{
		chain:  chain,
		source: source,
		logger: logger,
		cfg:    cfg,
	}
}

// Run executes one reconciliation pass over every seller with an on-chain
// store id. A single seller's failure never aborts the run; it is recorded
// in the report and the remaining sellers are still processed. Cancellation
// is checked between sellers, and the partial report is returned together
// with the context error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := newReport(r.cfg.DryRun)

	sellers, err := r.source.ListSellers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sellers: %w", err)
	}

	sellerIDs := make([]uuid.UUID, 0, len(sellers))
	for _, s := range sellers {
		sellerIDs = append(sellerIDs, s.ID)
	}

	totalsBySeller, err := r.source.OrderTotals(ctx, sellerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}

	sem := semaphore.NewWeighted(r.cfg.Parallelism)
	var wg sync.WaitGroup

	for _, seller := range sellers {
		// Acquire alone is not enough: with a free permit it may succeed
		// even on a done context, so a cancelled run would still start the
		// next seller.
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(s Seller) {
			defer wg.Done()
			defer sem.Release(1)
			report.add(r.processSeller(ctx, s, totalsBySeller[s.ID]))
		}(seller)
	}

	wg.Wait()
	report.Duration = time.Since(report.StartedAt)

	r.logger.Printf("[reputation-sync] run=%s processed=%d updated=%d noops=%d skipped=%d errors=%d duration=%s",
		report.RunID, report.Processed, report.Updated, report.Noops, report.Skipped, report.Errors, report.Duration)

	return report, ctx.Err()
}

func (r *Runner) processSeller(ctx context.Context, seller Seller, orders OrderTotals) Entry {
	totals := Totals(orders, seller.RatingAvg, seller.RatingCount)

	entry := Entry{
		SellerID: seller.ID,
		StoreID:  seller.StoreID,
		Totals:   totals,
	}

	current, found, err := r.fetch(ctx, seller.StoreID)
	if err != nil {
		r.logger.Printf("[reputation-sync] seller=%s store=%s fetch failed: %v", seller.ID, seller.StoreID, err)
		entry.Action = ActionError
		entry.Reason = err.Error()
		return entry
	}
	if !found {
		entry.Action = ActionSkipped
		entry.Reason = ReasonStoreNotFound
		return entry
	}

	delta := Delta(totals, &current)
	entry.Delta = delta

	if delta.IsZero() {
		entry.Action = ActionNoop
		entry.Reason = ReasonUpToDate
		return entry
	}

	if r.cfg.DryRun {
		entry.Action = ActionNoop
		entry.Reason = ReasonDryRun
		return entry
	}

	if err := r.bump(ctx, seller.StoreID, delta); err != nil {
		r.logger.Printf("[reputation-sync] seller=%s store=%s bump failed: %v", seller.ID, seller.StoreID, err)
		entry.Action = ActionError
		entry.Reason = err.Error()
		return entry
	}

	entry.Action = ActionUpdated
	return entry
}

func (r *Runner) fetch(ctx context.Context, storeID string) (Snapshot, bool, error) {
	if r.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.CallTimeout)
		defer cancel()
	}
	return r.chain.Fetch(ctx, storeID)
}

func (r *Runner) bump(ctx context.Context, storeID string, delta Snapshot) error {
	if r.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.CallTimeout)
		defer cancel()
	}
	return r.chain.Bump(ctx, storeID, delta)
}
