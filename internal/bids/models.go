package bids

import (
	"time"

	"gorm.io/gorm"

	"github.com/bidwatch/bidwatch/internal/types"
)

// Status is the outcome of one bid attempt. Pending is written the instant
// the decision is made; Success and Error are terminal, no automatic retry.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Record is the durable bookkeeping for one bid attempt, keyed by the
// auction's bid key. Its mere existence, whatever the status, suppresses any
// future bid on the same auction instance.
type Record struct {
	gorm.Model   `json:"-"`
	BidKey       string        `gorm:"uniqueIndex" json:"bid_key"`
	Status       Status        `json:"status"`
	TxHash       string        `json:"tx_hash,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Listing      types.Listing `gorm:"serializer:json" json:"listing"`
	DecidedAt    time.Time     `json:"decided_at"`
}
