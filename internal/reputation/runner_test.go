package reputation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazari/settlement/pkg/planck"
)

// fakeChain is an in-memory chain adapter. Bump mutates the stored state so
// consecutive runs observe the new baseline, like the real chain.
type fakeChain struct {
	mu       sync.Mutex
	stores   map[string]Snapshot
	fetchErr map[string]error
	bumpErr  map[string]error
	bumps    map[string][]Snapshot
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		stores:   make(map[string]Snapshot),
		fetchErr: make(map[string]error),
		bumpErr:  make(map[string]error),
		bumps:    make(map[string][]Snapshot),
	}
}

func (f *fakeChain) Fetch(ctx context.Context, storeID string) (Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[storeID]; err != nil {
		return Snapshot{}, false, err
	}
	state, ok := f.stores[storeID]
	return state, ok, nil
}

func (f *fakeChain) Bump(ctx context.Context, storeID string, delta Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bumpErr[storeID]; err != nil {
		return err
	}
	f.bumps[storeID] = append(f.bumps[storeID], delta)
	state := f.stores[storeID]
	state.Sales += delta.Sales
	state.Positive += delta.Positive
	state.Negative += delta.Negative
	state.VolumePlanck = state.VolumePlanck.Add(delta.VolumePlanck)
	f.stores[storeID] = state
	return nil
}

func (f *fakeChain) bumpCount(storeID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bumps[storeID])
}

type fakeSource struct {
	sellers []Seller
	totals  map[uuid.UUID]OrderTotals
	listErr error
}

func (f *fakeSource) ListSellers(ctx context.Context) ([]Seller, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sellers, nil
}

func (f *fakeSource) OrderTotals(ctx context.Context, sellerIDs []uuid.UUID) (map[uuid.UUID]OrderTotals, error) {
	return f.totals, nil
}

func TestRunnerAppliesPositiveDelta(t *testing.T) {
	seller := Seller{ID: uuid.New(), StoreID: "7", RatingAvg: 4.5, RatingCount: 10}

	chain := newFakeChain()
	chain.stores["7"] = Snapshot{Sales: 3, Positive: 6, Negative: 1, VolumePlanck: planck.FromInt(1000)}

	source := &fakeSource{
		sellers: []Seller{seller},
		totals: map[uuid.UUID]OrderTotals{
			seller.ID: {Sales: 5, VolumePlanck: planck.FromInt(12345)},
		},
	}

	runner := NewRunner(chain, source, nil, RunnerConfig{})
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Updated)

	require.Len(t, chain.bumps["7"], 1)
	bumped := chain.bumps["7"][0]
	assert.Equal(t, uint64(2), bumped.Sales)
	assert.Equal(t, uint64(3), bumped.Positive)
	assert.Equal(t, uint64(0), bumped.Negative)
	assert.Equal(t, 0, bumped.VolumePlanck.Cmp(planck.FromInt(11345)))
}

func TestRunnerIsIdempotent(t *testing.T) {
	seller := Seller{ID: uuid.New(), StoreID: "12", RatingAvg: 4.0, RatingCount: 5}

	chain := newFakeChain()
	chain.stores["12"] = Snapshot{}

	source := &fakeSource{
		sellers: []Seller{seller},
		totals: map[uuid.UUID]OrderTotals{
			seller.ID: {Sales: 3, VolumePlanck: planck.FromInt(500)},
		},
	}

	runner := NewRunner(chain, source, nil, RunnerConfig{})

	first, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Updated)
	assert.Equal(t, 1, chain.bumpCount("12"))

	// No new off-chain activity: the second run must observe the bumped
	// baseline, compute an all-zero delta, and leave the chain alone.
	second, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Noops)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 1, chain.bumpCount("12"))
	require.Len(t, second.Details, 1)
	assert.Equal(t, ReasonUpToDate, second.Details[0].Reason)
	assert.True(t, second.Details[0].Delta.IsZero())
}

func TestRunnerSkipsStoresNotOnChain(t *testing.T) {
	seller := Seller{ID: uuid.New(), StoreID: "404", RatingAvg: 4.0, RatingCount: 2}

	chain := newFakeChain() // store never bumped, Fetch reports not found

	source := &fakeSource{
		sellers: []Seller{seller},
		totals:  map[uuid.UUID]OrderTotals{seller.ID: {Sales: 1, VolumePlanck: planck.FromInt(10)}},
	}

	runner := NewRunner(chain, source, nil, RunnerConfig{})
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, chain.bumpCount("404"))
	require.Len(t, report.Details, 1)
	assert.Equal(t, ActionSkipped, report.Details[0].Action)
	assert.Equal(t, ReasonStoreNotFound, report.Details[0].Reason)
}

func TestRunnerIsolatesPerSellerFailures(t *testing.T) {
	healthy1 := Seller{ID: uuid.New(), StoreID: "1", RatingAvg: 5, RatingCount: 1}
	broken := Seller{ID: uuid.New(), StoreID: "2", RatingAvg: 5, RatingCount: 1}
	healthy2 := Seller{ID: uuid.New(), StoreID: "3", RatingAvg: 5, RatingCount: 1}

	chain := newFakeChain()
	chain.stores["1"] = Snapshot{}
	chain.stores["3"] = Snapshot{}
	chain.fetchErr["2"] = errors.New("rpc timeout")

	source := &fakeSource{
		sellers: []Seller{healthy1, broken, healthy2},
		totals: map[uuid.UUID]OrderTotals{
			healthy1.ID: {Sales: 1, VolumePlanck: planck.FromInt(100)},
			broken.ID:   {Sales: 1, VolumePlanck: planck.FromInt(100)},
			healthy2.ID: {Sales: 1, VolumePlanck: planck.FromInt(100)},
		},
	}

	runner := NewRunner(chain, source, nil, RunnerConfig{})
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, report.Processed, report.Updated+report.Noops+report.Skipped+report.Errors)
	assert.Equal(t, 1, chain.bumpCount("1"))
	assert.Equal(t, 1, chain.bumpCount("3"))
}

func TestRunnerBumpFailureIsRecorded(t *testing.T) {
	seller := Seller{ID: uuid.New(), StoreID: "9", RatingAvg: 4, RatingCount: 4}

	chain := newFakeChain()
	chain.stores["9"] = Snapshot{}
	chain.bumpErr["9"] = errors.New("extrinsic failed: stores.NotAuthorized")

	source := &fakeSource{
		sellers: []Seller{seller},
		totals:  map[uuid.UUID]OrderTotals{seller.ID: {Sales: 2, VolumePlanck: planck.FromInt(20)}},
	}

	runner := NewRunner(chain, source, nil, RunnerConfig{})
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Errors)
	require.Len(t, report.Details, 1)
	assert.Contains(t, report.Details[0].Reason, "NotAuthorized")
}

func TestRunnerDryRun(t *testing.T) {
	seller := Seller{ID: uuid.New(), StoreID: "5", RatingAvg: 4, RatingCount: 4}

	chain := newFakeChain()
	chain.stores["5"] = Snapshot{}

	source := &fakeSource{
		sellers: []Seller{seller},
		totals:  map[uuid.UUID]OrderTotals{seller.ID: {Sales: 2, VolumePlanck: planck.FromInt(20)}},
	}

	runner := NewRunner(chain, source, nil, RunnerConfig{DryRun: true})
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Noops)
	assert.Equal(t, 0, chain.bumpCount("5"))
	require.Len(t, report.Details, 1)
	assert.Equal(t, ReasonDryRun, report.Details[0].Reason)
	assert.False(t, report.Details[0].Delta.IsZero())
}

func TestRunnerSellerWithNoOrdersStillSyncsFeedback(t *testing.T) {
	seller := Seller{ID: uuid.New(), StoreID: "8", RatingAvg: 4.5, RatingCount: 10}

	chain := newFakeChain()
	chain.stores["8"] = Snapshot{}

	// No entry in the totals map: zero confirmed orders.
	source := &fakeSource{sellers: []Seller{seller}, totals: map[uuid.UUID]OrderTotals{}}

	runner := NewRunner(chain, source, nil, RunnerConfig{})
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Updated)
	require.Len(t, chain.bumps["8"], 1)
	assert.Equal(t, uint64(0), chain.bumps["8"][0].Sales)
	assert.Equal(t, uint64(9), chain.bumps["8"][0].Positive)
}

func TestRunnerCancellation(t *testing.T) {
	chain := newFakeChain()
	source := &fakeSource{totals: map[uuid.UUID]OrderTotals{}}
	for i := 0; i < 10; i++ {
		storeID := fmt.Sprintf("%d", i)
		chain.stores[storeID] = Snapshot{}
		source.sellers = append(source.sellers, Seller{ID: uuid.New(), StoreID: storeID})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(chain, source, nil, RunnerConfig{})
	report, err := runner.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Processed)
}

func TestRunnerParallel(t *testing.T) {
	chain := newFakeChain()
	source := &fakeSource{totals: map[uuid.UUID]OrderTotals{}}
	for i := 0; i < 50; i++ {
		storeID := fmt.Sprintf("%d", i)
		chain.stores[storeID] = Snapshot{}
		seller := Seller{ID: uuid.New(), StoreID: storeID, RatingAvg: 4, RatingCount: 4}
		source.sellers = append(source.sellers, seller)
		source.totals[seller.ID] = OrderTotals{Sales: uint64(i), VolumePlanck: planck.FromInt(int64(i) * 100)}
	}

	runner := NewRunner(chain, source, nil, RunnerConfig{Parallelism: 8})
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 50, report.Processed)
	assert.Equal(t, report.Processed, report.Updated+report.Noops+report.Skipped+report.Errors)
	assert.Len(t, report.Details, 50)
}

func TestRunnerListFailureIsRunLevel(t *testing.T) {
	source := &fakeSource{listErr: errors.New("connection refused")}

	runner := NewRunner(newFakeChain(), source, nil, RunnerConfig{})
	report, err := runner.Run(context.Background())

	assert.Error(t, err)
	assert.Nil(t, report)
}
