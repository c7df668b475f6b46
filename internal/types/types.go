package types

import "fmt"

// ItemClass identifies which auction house a listing came from.
type ItemClass string

const (
	ClassMomo ItemClass = "momo"
	ClassGem  ItemClass = "gem"
)

// Listing is an immutable snapshot of one open auction, taken at poll time.
// Momo listings carry Prototype and Hashrate; gem listings carry GemIDs and
// Amounts. Index is the argument passed to the bid contract (the auction
// index for momos, the order id for gems).
type Listing struct {
	Class     ItemClass `json:"class"`
	ItemID    int64     `json:"item_id"`
	Index     int64     `json:"index"`
	Prototype int64     `json:"prototype,omitempty"`
	Hashrate  int64     `json:"hashrate,omitempty"`
	GemIDs    []int64   `json:"gem_ids,omitempty"`
	Amounts   []int64   `json:"amounts,omitempty"`
	Price     int64     `json:"price"`
	StartTime int64     `json:"start_time"`
	Seller    string    `json:"seller"`
}

// BidKey identifies one auction instance. Item ids recur across distinct
// auctions, so the start time is part of the key.
func (l Listing) BidKey() string {
	return fmt.Sprintf("%d_%d", l.ItemID, l.StartTime)
}
