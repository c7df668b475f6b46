package engine

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bidwatch/bidwatch/internal/bids"
	"github.com/bidwatch/bidwatch/internal/catalog"
	"github.com/bidwatch/bidwatch/internal/rules"
	"github.com/bidwatch/bidwatch/internal/types"
	"github.com/bidwatch/bidwatch/pkg/response"
)

// ViewModel is the full state rendered by the control surface.
type ViewModel struct {
	Running   bool                       `json:"running"`
	Rules     []rules.Rule               `json:"rules"`
	Bids      []bids.Record              `json:"bids"`
	InFlight  []bids.InFlight            `json:"in_flight"`
	Listings  []types.Listing            `json:"listings"`
	Momos     map[int64]catalog.MomoMeta `json:"momos"`
	Gems      map[int64]catalog.GemMeta  `json:"gems"`
	Qualities map[int64]string           `json:"qualities"`
}

// GinHandlers serves the state view and the lifecycle endpoints.
type GinHandlers struct {
	controller *Controller
	poller     *Poller
	ruleStore  *rules.Store
	bidStore   *bids.Store
	executor   *bids.Executor
	catalog    *catalog.Store
}

func NewGinHandlers(
	controller *Controller,
	poller *Poller,
	ruleStore *rules.Store,
	bidStore *bids.Store,
	executor *bids.Executor,
	cat *catalog.Store,
) *GinHandlers {
	return &GinHandlers{
		controller: controller,
		poller:     poller,
		ruleStore:  ruleStore,
		bidStore:   bidStore,
		executor:   executor,
		catalog:    cat,
	}
}

// IndexHandler handles GET /: the current state as one view model.
func (h *GinHandlers) IndexHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := h.catalog.Snapshot()
		response.Success(c, ViewModel{
			Running:   h.controller.Running(),
			Rules:     h.ruleStore.List(),
			Bids:      h.bidStore.Snapshot(),
			InFlight:  h.executor.InFlight(),
			Listings:  h.poller.LastListings(),
			Momos:     snap.Momos,
			Gems:      snap.Gems,
			Qualities: catalog.Qualities,
		})
	}
}

// StartHandler handles POST /start.
func (h *GinHandlers) StartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.controller.Start()
		c.JSON(http.StatusOK, gin.H{"msg": "started"})
	}
}

// StopHandler handles POST /stop.
func (h *GinHandlers) StopHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.controller.Stop()
		c.JSON(http.StatusOK, gin.H{"msg": "stopped"})
	}
}
