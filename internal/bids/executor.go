package bids

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bidwatch/bidwatch/internal/ledger"
	"github.com/bidwatch/bidwatch/internal/types"
)

// Ledger is the narrow slice of the chain client the executor needs.
type Ledger interface {
	AllocateNonce(ctx context.Context) (uint64, error)
	SignMomoBid(seller string, index, startTime int64, price *big.Int, nonce uint64) (*ethtypes.Transaction, error)
	SignGemBid(seller string, orderID int64, price *big.Int, nonce uint64) (*ethtypes.Transaction, error)
	Submit(ctx context.Context, tx *ethtypes.Transaction) (common.Hash, error)
}

const (
	// BidIncrement is the fixed outbid margin, 0.0001 native units at the
	// marketplace's 1e-9 scale.
	BidIncrement int64 = 100_000

	// AuctionWindow is the delay between a momo auction's start and its
	// close; a momo bid lands right before the window expires.
	AuctionWindow = 114 * time.Second
)

// InFlight describes one detached bid task, kept for observability only.
type InFlight struct {
	TaskID    string          `json:"task_id"`
	BidKey    string          `json:"bid_key"`
	Class     types.ItemClass `json:"class"`
	StartedAt time.Time       `json:"started_at"`
}

// Executor runs one detached task per accepted listing. Tasks are registered
// for observability but deliberately not parented to the poller's
// cancellation scope: a stop command never abandons a committed bid
// mid-flight.
type Executor struct {
	store  *Store
	ledger Ledger

	mu       sync.Mutex
	inflight map[string]InFlight
	wg       sync.WaitGroup

	// Overridable in tests.
	now   func() time.Time
	sleep func(time.Duration)
}

func NewExecutor(store *Store, l Ledger) *Executor {
	return &Executor{
		store:    store,
		ledger:   l,
		inflight: make(map[string]InFlight),
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Spawn records the bid decision and starts a detached task for it. The
// Pending record is written before the goroutine starts, so the idempotency
// window is already closed when Spawn returns.
func (e *Executor) Spawn(l types.Listing) {
	key := l.BidKey()
	e.store.PutPending(l)

	task := InFlight{
		TaskID:    uuid.New().String(),
		BidKey:    key,
		Class:     l.Class,
		StartedAt: e.now(),
	}

	e.mu.Lock()
	e.inflight[task.TaskID] = task
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(task, l)
}

func (e *Executor) run(task InFlight, l types.Listing) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.inflight, task.TaskID)
		e.mu.Unlock()
	}()

	logger := log.With().
		Str("component", "bid_executor").
		Str("task_id", task.TaskID).
		Str("bid_key", task.BidKey).
		Str("class", string(l.Class)).
		Logger()

	hash, err := e.place(context.Background(), l)
	if err != nil {
		// Captured at the task boundary: one failing bid never affects
		// sibling tasks or the poller.
		e.store.MarkError(task.BidKey, err.Error())
		logger.Warn().Err(err).Msg("bid failed")
		return
	}

	e.store.MarkSuccess(task.BidKey, hash.Hex())
	logger.Info().Str("tx_hash", hash.Hex()).Int64("price", l.Price).Msg("bid submitted")
}

// place is the straight-line bid pipeline: price, nonce, build and sign,
// timing gate, submit.
func (e *Executor) place(ctx context.Context, l types.Listing) (common.Hash, error) {
	price := ContractPrice(l.Price)

	nonce, err := e.ledger.AllocateNonce(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	var tx *ethtypes.Transaction
	switch l.Class {
	case types.ClassMomo:
		tx, err = e.ledger.SignMomoBid(l.Seller, l.Index, l.StartTime, price, nonce)
	default:
		tx, err = e.ledger.SignGemBid(l.Seller, l.Index, price, nonce)
	}
	if err != nil {
		return common.Hash{}, err
	}

	// Momo auctions close a fixed window after they open; hold the signed
	// transaction until just before then. A deadline already in the past
	// means submit immediately, never a negative sleep.
	if l.Class == types.ClassMomo {
		deadline := time.Unix(l.StartTime, 0).Add(AuctionWindow)
		if wait := deadline.Sub(e.now()); wait > 0 {
			e.sleep(wait)
		}
	}

	return e.ledger.Submit(ctx, tx)
}

// InFlight returns the currently registered detached tasks.
func (e *Executor) InFlight() []InFlight {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]InFlight, 0, len(e.inflight))
	for _, t := range e.inflight {
		out = append(out, t)
	}
	return out
}

// Wait blocks until all spawned tasks have finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// ContractPrice converts a listing price plus the outbid margin to the
// contract's fixed-point integer representation.
func ContractPrice(listingPrice int64) *big.Int {
	price := big.NewInt(listingPrice + BidIncrement)
	return price.Mul(price, big.NewInt(ledger.ContractScale))
}
