package rules

import (
	"github.com/shopspring/decimal"

	"github.com/bidwatch/bidwatch/internal/catalog"
	"github.com/bidwatch/bidwatch/internal/ledger"
	"github.com/bidwatch/bidwatch/internal/types"
)

// BidGate answers whether a bid was already decided for a key. Implemented
// by the bid record store; its mere answer suppresses re-bidding regardless
// of the recorded outcome.
type BidGate interface {
	Contains(bidKey string) bool
}

var unitScale = decimal.NewFromInt(ledger.UnitScale)

// Matches reports whether a listing should be bid on: the idempotency gate
// first, then a disjunction over the rules, each rule a conjunction over its
// present constraints. Malformed listings (zero hashrate, multi-item gem
// lots) are non-matches, never errors.
func Matches(l types.Listing, rules []Rule, cat catalog.Snapshot, placed BidGate) bool {
	if placed != nil && placed.Contains(l.BidKey()) {
		return false
	}

	for _, r := range rules {
		switch {
		case r.Kind == KindMomo && l.Class == types.ClassMomo:
			if momoMatches(l, r, cat) {
				return true
			}
		case r.Kind == KindGem && l.Class == types.ClassGem:
			if gemMatches(l, r) {
				return true
			}
		}
	}
	return false
}

func momoMatches(l types.Listing, r Rule, cat catalog.Snapshot) bool {
	if r.Prototype != nil && l.Prototype != *r.Prototype {
		return false
	}

	if r.Quality != nil {
		q, ok := cat.MomoQuality(l.Prototype)
		if !ok || q != *r.Quality {
			return false
		}
	}

	price := decimal.NewFromInt(l.Price)

	if r.PriceCeiling != nil && !price.LessThan(r.PriceCeiling.Mul(unitScale)) {
		return false
	}

	if r.HashrateCeiling != nil {
		if l.Hashrate <= 0 {
			return false
		}
		perHash := price.Div(unitScale).Div(decimal.NewFromInt(l.Hashrate))
		if !perHash.LessThan(*r.HashrateCeiling) {
			return false
		}
	}

	return true
}

func gemMatches(l types.Listing, r Rule) bool {
	// Multi-item lots are rejected outright, whatever the price.
	if len(l.GemIDs) != 1 || len(l.Amounts) != 1 {
		return false
	}
	if r.GemID == nil || r.PerUnitCeiling == nil {
		return false
	}
	if l.GemIDs[0] != *r.GemID {
		return false
	}

	amount := l.Amounts[0]
	if amount <= 0 {
		return false
	}

	perUnit := decimal.NewFromInt(l.Price).Div(decimal.NewFromInt(amount))
	return perUnit.LessThan(r.PerUnitCeiling.Mul(unitScale))
}
