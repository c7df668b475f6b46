package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bidwatch/bidwatch/internal/bids"
	"github.com/bidwatch/bidwatch/internal/catalog"
	"github.com/bidwatch/bidwatch/internal/rules"
	"github.com/bidwatch/bidwatch/internal/types"
)

// Marketplace is the listing discovery boundary, one query per item class
// per cycle.
type Marketplace interface {
	MomoListings(ctx context.Context) ([]types.Listing, error)
	GemListings(ctx context.Context) ([]types.Listing, error)
}

// DefaultInterval is the poll cadence.
const DefaultInterval = 5 * time.Second

// Poller discovers candidate auctions, matches them against the active rule
// set and spawns a detached bid task per match. A failed fetch skips that
// class for the cycle, never the loop.
type Poller struct {
	market   Marketplace
	rules    *rules.Store
	catalog  *catalog.Store
	store    *bids.Store
	executor *bids.Executor
	interval time.Duration

	mu           sync.RWMutex
	lastListings []types.Listing
}

func NewPoller(market Marketplace, ruleStore *rules.Store, cat *catalog.Store, store *bids.Store, executor *bids.Executor) *Poller {
	return &Poller{
		market:   market,
		rules:    ruleStore,
		catalog:  cat,
		store:    store,
		executor: executor,
		interval: DefaultInterval,
	}
}

// Run polls until the context is cancelled. The next tick is computed from
// the cycle start, not from now, so the cadence does not drift.
func (p *Poller) Run(ctx context.Context) {
	logger := log.With().Str("component", "poller").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting marketplace poller")

	for {
		cycleStart := time.Now()
		p.cycle(ctx)

		wait := time.Until(cycleStart.Add(p.interval))
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info().Msg("shutting down marketplace poller")
			return
		case <-timer.C:
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	logger := log.With().Str("component", "poller").Logger()

	ruleSet := p.rules.List()
	snap := p.catalog.Snapshot()

	var seen []types.Listing
	matched := 0

	for _, fetch := range []struct {
		class string
		do    func(context.Context) ([]types.Listing, error)
	}{
		{class: "momo", do: p.market.MomoListings},
		{class: "gem", do: p.market.GemListings},
	} {
		listings, err := fetch.do(ctx)
		if err != nil {
			logger.Warn().Err(err).Str("class", fetch.class).Msg("listing fetch failed, skipping class this cycle")
			continue
		}
		seen = append(seen, listings...)

		for _, l := range listings {
			if rules.Matches(l, ruleSet, snap, p.store) {
				matched++
				logger.Info().
					Str("bid_key", l.BidKey()).
					Str("class", string(l.Class)).
					Int64("price", l.Price).
					Msg("listing matched, spawning bid")
				p.executor.Spawn(l)
			}
		}
	}

	p.mu.Lock()
	p.lastListings = seen
	p.mu.Unlock()

	logger.Debug().Int("listings", len(seen)).Int("matched", matched).Msg("poll cycle done")
}

// LastListings returns the most recent cycle's listing snapshot.
func (p *Poller) LastListings() []types.Listing {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.Listing, len(p.lastListings))
	copy(out, p.lastListings)
	return out
}
