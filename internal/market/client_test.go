package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bidwatch/bidwatch/internal/types"
)

func TestMomoListings_Decode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auction/search/BNB" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "10000" {
			t.Errorf("limit=%s want 10000", got)
		}
		w.Write([]byte(`{"list":[
			{"id":42,"index":3,"prototype":12,"nowPrice":4000000000,"lvHashrate":120,"uptime":1700000000,"auctor":"0x00000000000000000000000000000000000000aa"},
			{"id":43,"index":4,"prototype":13,"nowPrice":1000000000,"lvHashrate":80,"uptime":1700000100,"auctor":""}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	listings, err := c.MomoListings(context.Background())
	if err != nil {
		t.Fatalf("momo listings: %v", err)
	}

	// The sellerless row must be dropped, not surfaced as an error.
	if len(listings) != 1 {
		t.Fatalf("got %d listings, want 1", len(listings))
	}

	l := listings[0]
	if l.Class != types.ClassMomo {
		t.Errorf("class=%s want momo", l.Class)
	}
	if l.ItemID != 42 || l.Index != 3 || l.Prototype != 12 {
		t.Errorf("unexpected identity fields: %+v", l)
	}
	if l.Price != 4000000000 || l.Hashrate != 120 || l.StartTime != 1700000000 {
		t.Errorf("unexpected value fields: %+v", l)
	}
	if l.BidKey() != "42_1700000000" {
		t.Errorf("bid key=%s", l.BidKey())
	}
}

func TestGemListings_Decode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gem_auction/search/BNB" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"list":[
			{"orderId":900,"ids":[100],"amounts":[2],"price":15000000,"uptime":1700000200,"auctor":"0x00000000000000000000000000000000000000bb"}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	listings, err := c.GemListings(context.Background())
	if err != nil {
		t.Fatalf("gem listings: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("got %d listings, want 1", len(listings))
	}

	l := listings[0]
	if l.Class != types.ClassGem {
		t.Errorf("class=%s want gem", l.Class)
	}
	if l.ItemID != 900 || l.Index != 900 {
		t.Errorf("order id not mapped to both key and index: %+v", l)
	}
	if len(l.GemIDs) != 1 || l.GemIDs[0] != 100 || len(l.Amounts) != 1 || l.Amounts[0] != 2 {
		t.Errorf("lot fields: %+v", l)
	}
}

func TestSearch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream sad", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.MomoListings(context.Background()); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestNewClient_RejectsBadScheme(t *testing.T) {
	if _, err := NewClient("ftp://nope"); err == nil {
		t.Fatal("expected scheme error")
	}
}
