package rules

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bidwatch/bidwatch/internal/catalog"
	"github.com/bidwatch/bidwatch/internal/types"
)

func i64(v int64) *int64 { return &v }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type fakeGate map[string]bool

func (g fakeGate) Contains(key string) bool { return g[key] }

func momoListing(prototype, price, hashrate int64) types.Listing {
	return types.Listing{
		Class:     types.ClassMomo,
		ItemID:    1,
		Prototype: prototype,
		Price:     price,
		Hashrate:  hashrate,
		StartTime: 1700000000,
		Seller:    "0x00000000000000000000000000000000000000aa",
	}
}

func TestMatches_MomoConjunction(t *testing.T) {
	rule := Rule{
		Kind:         KindMomo,
		Prototype:    i64(12),
		PriceCeiling: dec("5"),
	}

	cases := []struct {
		name    string
		listing types.Listing
		want    bool
	}{
		{name: "prototype and price hold", listing: momoListing(12, 4_000_000_000, 100), want: true},
		{name: "price over ceiling", listing: momoListing(12, 6_000_000_000, 100), want: false},
		{name: "wrong prototype", listing: momoListing(13, 1_000_000_000, 100), want: false},
		{name: "price equal to ceiling is not below it", listing: momoListing(12, 5_000_000_000, 100), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Matches(tc.listing, []Rule{rule}, catalog.Snapshot{}, nil)
			if got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestMatches_QualityNeedsCatalog(t *testing.T) {
	rule := Rule{Kind: KindMomo, Quality: i64(4)}

	empty := catalog.Snapshot{}
	if Matches(momoListing(12, 1, 1), []Rule{rule}, empty, nil) {
		t.Fatal("quality filter must not match without catalog metadata")
	}

	loaded := catalog.Snapshot{
		Momos: map[int64]catalog.MomoMeta{12: {Prototype: 12, Quality: 4}},
	}
	if !Matches(momoListing(12, 1, 1), []Rule{rule}, loaded, nil) {
		t.Fatal("expected match on quality 4")
	}
	if Matches(momoListing(12, 1, 1), []Rule{{Kind: KindMomo, Quality: i64(5)}}, loaded, nil) {
		t.Fatal("quality 5 must not match quality 4")
	}
}

func TestMatches_HashrateCeiling(t *testing.T) {
	rule := Rule{Kind: KindMomo, HashrateCeiling: dec("0.05")}

	// price/scale/hashrate = 4/100 = 0.04 < 0.05
	if !Matches(momoListing(12, 4_000_000_000, 100), []Rule{rule}, catalog.Snapshot{}, nil) {
		t.Fatal("expected 0.04 per hash to pass 0.05 ceiling")
	}
	// 6/100 = 0.06
	if Matches(momoListing(12, 6_000_000_000, 100), []Rule{rule}, catalog.Snapshot{}, nil) {
		t.Fatal("0.06 per hash must fail 0.05 ceiling")
	}
	// Zero hashrate is malformed, excluded rather than fatal.
	if Matches(momoListing(12, 1, 0), []Rule{rule}, catalog.Snapshot{}, nil) {
		t.Fatal("zero hashrate must never match a hashrate rule")
	}
}

func TestMatches_GemSingleLot(t *testing.T) {
	rule := Rule{Kind: KindGem, GemID: i64(100), PerUnitCeiling: dec("0.01")}

	single := types.Listing{
		Class:   types.ClassGem,
		ItemID:  900,
		GemIDs:  []int64{100},
		Amounts: []int64{2},
		Price:   15_000_000,
	}
	// 15,000,000 / 2 = 7,500,000 < 0.01 * 1e9 = 10,000,000
	if !Matches(single, []Rule{rule}, catalog.Snapshot{}, nil) {
		t.Fatal("expected per-unit price under ceiling to match")
	}

	multi := types.Listing{
		Class:   types.ClassGem,
		ItemID:  901,
		GemIDs:  []int64{100, 200},
		Amounts: []int64{1, 1},
		Price:   1,
	}
	if Matches(multi, []Rule{rule}, catalog.Snapshot{}, nil) {
		t.Fatal("multi-item lots must be rejected regardless of price")
	}

	wrongGem := single
	wrongGem.GemIDs = []int64{200}
	if Matches(wrongGem, []Rule{rule}, catalog.Snapshot{}, nil) {
		t.Fatal("gem id mismatch must not match")
	}
}

func TestMatches_IdempotencyGate(t *testing.T) {
	rule := Rule{Kind: KindMomo, PriceCeiling: dec("1000")}
	l := momoListing(12, 1, 1)

	gate := fakeGate{l.BidKey(): true}
	if Matches(l, []Rule{rule}, catalog.Snapshot{}, gate) {
		t.Fatal("recorded bid key must suppress matching for all rule sets")
	}
	if !Matches(l, []Rule{rule}, catalog.Snapshot{}, fakeGate{}) {
		t.Fatal("unrecorded key should match")
	}
}

func TestMatches_Disjunction(t *testing.T) {
	ruleNoMatch := Rule{Kind: KindMomo, Prototype: i64(99)}
	ruleMatch := Rule{Kind: KindMomo, Prototype: i64(12)}

	if !Matches(momoListing(12, 1, 1), []Rule{ruleNoMatch, ruleMatch}, catalog.Snapshot{}, nil) {
		t.Fatal("any matching rule should acquire the listing")
	}
	if Matches(momoListing(12, 1, 1), nil, catalog.Snapshot{}, nil) {
		t.Fatal("empty rule set must never match")
	}
}

func TestMatches_ClassMismatch(t *testing.T) {
	gemRule := Rule{Kind: KindGem, GemID: i64(100), PerUnitCeiling: dec("1")}
	if Matches(momoListing(12, 1, 1), []Rule{gemRule}, catalog.Snapshot{}, nil) {
		t.Fatal("gem rule must not match a momo listing")
	}

	momoRule := Rule{Kind: KindMomo, PriceCeiling: dec("1000")}
	gemListing := types.Listing{Class: types.ClassGem, GemIDs: []int64{100}, Amounts: []int64{1}, Price: 1}
	if Matches(gemListing, []Rule{momoRule}, catalog.Snapshot{}, nil) {
		t.Fatal("momo rule must not match a gem listing")
	}
}
