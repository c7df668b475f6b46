package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bidwatch/bidwatch/internal/catalog"
)

// Controller owns the process-wide running flag and the lifetimes of the
// poller and catalog refresher. Stop cancels only those two loops; bid tasks
// already spawned are detached and run to completion.
type Controller struct {
	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	poller    *Poller
	refresher *catalog.Refresher
}

func NewController(poller *Poller, refresher *catalog.Refresher) *Controller {
	return &Controller{
		poller:    poller,
		refresher: refresher,
	}
}

// Start spawns the poller and refresher loops. Returns false when already
// running.
func (c *Controller) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true

	go c.poller.Run(ctx)
	if c.refresher != nil {
		go c.refresher.Run(ctx)
	}

	log.Info().Msg("bot started")
	return true
}

// Stop cancels the poller and refresher loops. Returns false when already
// stopped.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return false
	}

	c.cancel()
	c.cancel = nil
	c.running = false

	log.Info().Msg("bot stopped")
	return true
}

// Running reports the current lifecycle state.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
