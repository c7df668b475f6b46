package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSnapshot_MomoQuality(t *testing.T) {
	store := NewStore(nil)
	store.Replace(Snapshot{
		Momos: map[int64]MomoMeta{
			12: {Prototype: 12, Name: "Boxer", Quality: 4},
		},
	})

	snap := store.Snapshot()
	q, ok := snap.MomoQuality(12)
	if !ok || q != 4 {
		t.Fatalf("quality=%d ok=%v, want 4 true", q, ok)
	}
	if _, ok := snap.MomoQuality(99); ok {
		t.Fatal("unknown prototype should not resolve")
	}
}

func TestReplace_SwapsWholesale(t *testing.T) {
	store := NewStore(nil)
	store.Replace(Snapshot{Momos: map[int64]MomoMeta{1: {Prototype: 1}}})
	store.Replace(Snapshot{Momos: map[int64]MomoMeta{2: {Prototype: 2}}})

	snap := store.Snapshot()
	if _, ok := snap.Momos[1]; ok {
		t.Fatal("old generation leaked into new snapshot")
	}
	if _, ok := snap.Momos[2]; !ok {
		t.Fatal("new generation missing")
	}
}

func TestGemMetaFor(t *testing.T) {
	cases := []struct {
		id       int64
		wantName string
		wantLvl  string
		ok       bool
	}{
		{id: 101, wantName: "Ruby", wantLvl: "Lvl. 1", ok: true},
		{id: 310, wantName: "Sapphire", wantLvl: "Lvl. 10", ok: true},
		{id: 400, ok: false}, // level 0 does not exist
		{id: 512, ok: false}, // unknown family
		{id: 2, ok: false},
	}

	for _, tc := range cases {
		meta, ok := GemMetaFor(tc.id)
		if ok != tc.ok {
			t.Errorf("id %d: ok=%v want %v", tc.id, ok, tc.ok)
			continue
		}
		if !ok {
			continue
		}
		if meta.Name != tc.wantName || meta.Level != tc.wantLvl {
			t.Errorf("id %d: got %q %q", tc.id, meta.Name, meta.Level)
		}
	}
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"momos": {"12": {"prototype":12,"tokenName":"Name_12","name":"Boxer","quality":4,"category":1,"mmNum":3}},
			"gems": [100, 101, 204, 999]
		}`))
	}))
	defer srv.Close()

	snap, err := NewHTTPFetcher(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if m, ok := snap.Momos[12]; !ok || m.Quality != 4 || m.Name != "Boxer" {
		t.Fatalf("momo meta: %+v ok=%v", m, ok)
	}
	// 100 (level 0) and 999 (unknown family) must be dropped.
	if len(snap.Gems) != 2 {
		t.Fatalf("gems=%d want 2", len(snap.Gems))
	}
	if g := snap.Gems[204]; g.Name != "Emerald" || g.Level != "Lvl. 4" {
		t.Fatalf("gem 204: %+v", g)
	}
}
