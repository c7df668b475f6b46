package engine

import (
	"testing"
	"time"
)

func newTestController(t *testing.T) (*Controller, *fakeMarket) {
	t.Helper()
	market := &fakeMarket{}
	p, _, _ := newTestPoller(t, market)
	p.interval = 5 * time.Millisecond
	return NewController(p, nil), market
}

func TestController_StartStop(t *testing.T) {
	c, market := newTestController(t)

	if c.Running() {
		t.Fatal("controller should start stopped")
	}
	if !c.Start() {
		t.Fatal("first start should succeed")
	}
	if c.Start() {
		t.Fatal("second start should be a no-op")
	}
	if !c.Running() {
		t.Fatal("controller should report running")
	}

	time.Sleep(20 * time.Millisecond)
	market.mu.Lock()
	polled := market.calls > 0
	market.mu.Unlock()
	if !polled {
		t.Fatal("start did not spawn the poller")
	}

	if !c.Stop() {
		t.Fatal("stop while running should succeed")
	}
	if c.Stop() {
		t.Fatal("second stop should be a no-op")
	}
	if c.Running() {
		t.Fatal("controller should report stopped")
	}
}

func TestController_RestartAfterStop(t *testing.T) {
	c, _ := newTestController(t)

	if !c.Start() {
		t.Fatal("start failed")
	}
	if !c.Stop() {
		t.Fatal("stop failed")
	}
	if !c.Start() {
		t.Fatal("restart after stop failed")
	}
	c.Stop()
}
