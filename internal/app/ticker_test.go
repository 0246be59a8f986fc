package app

import (
	"testing"
	"time"

	"github.com/colonycast/hub/internal/core"
	"github.com/colonycast/hub/internal/domain"
)

func TestEconomyTickAccrual(t *testing.T) {
	h := newTestHub()
	tick := NewTicker(h, 10*time.Second, time.Second, time.Minute)

	_, _ = h.Store.CreateSession("a", "k1", true, "")
	_, _ = h.Store.CreateSession("b", "k2", true, "")
	rateA, rateB := 12.0, 30.0
	_ = h.Store.UpdateSettings("a", core.SettingsUpdate{CoinRate: &rateA})
	_ = h.Store.UpdateSettings("b", core.SettingsUpdate{CoinRate: &rateB})
	_ = h.Store.AddViewer("conn-1", "a", "alice")
	_ = h.Store.AddViewer("conn-2", "b", "bob")

	for i := 0; i < 3; i++ {
		tick.EconomyTick()
	}

	// 10s ticks: six per minute, so rate/6 per tick.
	if got, want := h.Store.Balance("a", "alice"), 3*rateA/6; got != want {
		t.Fatalf("alice balance = %v, want %v", got, want)
	}
	if got, want := h.Store.Balance("b", "bob"), 3*rateB/6; got != want {
		t.Fatalf("bob balance = %v, want %v (cross-session interference?)", got, want)
	}
}

func TestEconomyTickZeroRateAccruesNothing(t *testing.T) {
	h := newTestHub()
	tick := NewTicker(h, 10*time.Second, time.Second, time.Minute)

	_, _ = h.Store.CreateSession("a", "k1", true, "")
	_ = h.Store.AddViewer("conn-1", "a", "alice")

	tick.EconomyTick()

	if got := h.Store.Balance("a", "alice"); got != 0 {
		t.Fatalf("zero coinRate accrued %v", got)
	}
}

func TestQueueTickPromotesAndPublishes(t *testing.T) {
	h := newTestHub()
	tick := NewTicker(h, 10*time.Second, time.Second, time.Minute)

	_, _ = h.Store.CreateSession("a", "k1", true, "")
	noWait := time.Duration(0)
	_ = h.Store.UpdateSettings("a", core.SettingsUpdate{VoteDuration: &noWait})

	conn := &fakeEventConn{id: "c1"}
	h.Rooms.Register(conn)
	_ = h.SelectSession(conn, "a", "alice")

	if _, err := h.Store.SubmitRequest("a", domain.RequestSuggestion, "", "more rice", "alice", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	tick.QueueTick()

	actions, _ := h.Store.DrainActions("a")
	if len(actions) != 1 || actions[0].Action != "send_letter" {
		t.Fatalf("queue tick did not promote: %+v", actions)
	}
	if conn.countType(t, EvQueueUpdate) == 0 {
		t.Fatalf("queue-update not published after promotion")
	}
}

func TestGuardContainsPanics(t *testing.T) {
	h := newTestHub()
	tick := NewTicker(h, 10*time.Second, time.Second, time.Minute)

	ran := false
	tick.guard("a", "test", func(domain.SessionID) { panic("boom") })
	tick.guard("b", "test", func(domain.SessionID) { ran = true })
	if !ran {
		t.Fatalf("panic in one session stopped the loop")
	}
}
