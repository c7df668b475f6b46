package engine

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/bidwatch/bidwatch/internal/bids"
	"github.com/bidwatch/bidwatch/internal/catalog"
	"github.com/bidwatch/bidwatch/internal/rules"
	"github.com/bidwatch/bidwatch/internal/types"
)

type fakeMarket struct {
	mu    sync.Mutex
	momos []types.Listing
	gems  []types.Listing
	err   error
	calls int
}

func (m *fakeMarket) MomoListings(context.Context) ([]types.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.momos, nil
}

func (m *fakeMarket) GemListings(context.Context) ([]types.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.gems, nil
}

func momoListing(id, prototype, price int64) types.Listing {
	return types.Listing{
		Class:     types.ClassMomo,
		ItemID:    id,
		Index:     id,
		Prototype: prototype,
		Hashrate:  100,
		Price:     price,
		StartTime: 1700000000,
		Seller:    "0x00000000000000000000000000000000000000aa",
	}
}

func i64(v int64) *int64 { return &v }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newTestPoller(t *testing.T, market Marketplace) (*Poller, *rules.Store, *bids.Store) {
	t.Helper()
	cat := catalog.NewStore(nil)
	ruleStore := rules.NewStore(nil, cat)
	bidStore := bids.NewStore(nil)
	executor := bids.NewExecutor(bidStore, alwaysFailLedger{})
	return NewPoller(market, ruleStore, cat, bidStore, executor), ruleStore, bidStore
}

// alwaysFailLedger fails at nonce allocation, terminating each bid task
// quickly with an Error record; the poller's behavior is what is under test.
type alwaysFailLedger struct{}

func (alwaysFailLedger) AllocateNonce(context.Context) (uint64, error) {
	return 0, errors.New("no ledger in test")
}

func (alwaysFailLedger) SignMomoBid(string, int64, int64, *big.Int, uint64) (*ethtypes.Transaction, error) {
	return nil, errors.New("unreachable")
}

func (alwaysFailLedger) SignGemBid(string, int64, *big.Int, uint64) (*ethtypes.Transaction, error) {
	return nil, errors.New("unreachable")
}

func (alwaysFailLedger) Submit(context.Context, *ethtypes.Transaction) (common.Hash, error) {
	return common.Hash{}, errors.New("unreachable")
}

func TestCycle_SpawnsBidForMatch(t *testing.T) {
	market := &fakeMarket{momos: []types.Listing{
		momoListing(1, 12, 4_000_000_000),
		momoListing(2, 13, 4_000_000_000),
	}}

	p, ruleStore, bidStore := newTestPoller(t, market)
	if _, err := ruleStore.Add(rules.Rule{Kind: rules.KindMomo, Prototype: i64(12), PriceCeiling: dec("5")}); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	p.cycle(context.Background())
	p.executor.Wait()

	match := momoListing(1, 12, 4_000_000_000)
	if !bidStore.Contains(match.BidKey()) {
		t.Fatal("matching listing did not produce a bid record")
	}
	miss := momoListing(2, 13, 4_000_000_000)
	if bidStore.Contains(miss.BidKey()) {
		t.Fatal("non-matching listing produced a bid record")
	}
}

func TestCycle_SkipsRecordedBids(t *testing.T) {
	l := momoListing(1, 12, 4_000_000_000)
	market := &fakeMarket{momos: []types.Listing{l}}

	p, ruleStore, bidStore := newTestPoller(t, market)
	if _, err := ruleStore.Add(rules.Rule{Kind: rules.KindMomo, Prototype: i64(12)}); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	p.cycle(context.Background())
	p.executor.Wait()
	rec, _ := bidStore.Get(l.BidKey())

	// Second cycle sees the same listing; the existing record, whatever its
	// status, must suppress a second bid.
	p.cycle(context.Background())
	p.executor.Wait()

	after, _ := bidStore.Get(l.BidKey())
	if after.DecidedAt != rec.DecidedAt {
		t.Fatal("recorded bid was re-decided on the next cycle")
	}
}

func TestCycle_FetchFailureIsNonFatal(t *testing.T) {
	market := &fakeMarket{err: errors.New("network down")}
	p, _, _ := newTestPoller(t, market)

	// Must not panic or wedge; the loop simply moves on.
	p.cycle(context.Background())

	market.mu.Lock()
	market.err = nil
	market.momos = []types.Listing{momoListing(9, 1, 1)}
	market.mu.Unlock()

	p.cycle(context.Background())
	if got := len(p.LastListings()); got != 1 {
		t.Fatalf("listings=%d want 1 after recovery", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	market := &fakeMarket{}
	p, _, _ := newTestPoller(t, market)
	p.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on cancellation")
	}

	market.mu.Lock()
	calls := market.calls
	market.mu.Unlock()
	if calls == 0 {
		t.Fatal("poller never polled")
	}
}
