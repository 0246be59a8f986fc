package core

import (
	"errors"
	"testing"
	"time"

	"github.com/colonycast/hub/internal/domain"
)

func newTestStore(start time.Time) (*Store, *time.Time) {
	clock := start
	s := NewStore()
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestCreateSessionIdempotent(t *testing.T) {
	s, _ := newTestStore(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	created, err := s.CreateSession("abc", "k1", true, "")
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}
	created, err = s.CreateSession("abc", "k1", true, "")
	if err != nil {
		t.Fatalf("re-register with matching key: %v", err)
	}
	if created {
		t.Fatalf("re-register reported created=true")
	}
}

func TestCreateSessionHijackRejected(t *testing.T) {
	s, _ := newTestStore(time.Now())
	if _, err := s.CreateSession("abc", "k1", false, "pw"); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := s.CreateSession("abc", "other-key", true, "")
	if !errors.Is(err, ErrStreamKeyMismatch) {
		t.Fatalf("expected ErrStreamKeyMismatch, got %v", err)
	}

	// Nothing mutated by the rejected attempt.
	snap, ok := s.Snapshot("abc")
	if !ok {
		t.Fatalf("session gone after rejected hijack")
	}
	if snap.Meta.IsPublic {
		t.Fatalf("visibility mutated by rejected hijack")
	}
	if snap.Meta.InteractionPassword != "pw" {
		t.Fatalf("password mutated by rejected hijack")
	}
}

func TestValidateKey(t *testing.T) {
	s, _ := newTestStore(time.Now())
	_, _ = s.CreateSession("abc", "k1", true, "")

	if !s.ValidateKey("abc", "k1") {
		t.Fatalf("matching key rejected")
	}
	if s.ValidateKey("abc", "nope") {
		t.Fatalf("wrong key accepted")
	}
	if s.ValidateKey("missing", "k1") {
		t.Fatalf("unknown session validated")
	}
}

func TestUpdateSettingsPartialMerge(t *testing.T) {
	s, _ := newTestStore(time.Now())
	_, _ = s.CreateSession("abc", "k1", true, "")

	rate := 12.0
	if err := s.UpdateSettings("abc", SettingsUpdate{CoinRate: &rate}); err != nil {
		t.Fatalf("update: %v", err)
	}
	private := false
	d := 30 * time.Second
	if err := s.UpdateSettings("abc", SettingsUpdate{IsPublic: &private, VoteDuration: &d}); err != nil {
		t.Fatalf("update: %v", err)
	}

	snap, _ := s.Snapshot("abc")
	if snap.Economy.CoinRate != 12.0 {
		t.Fatalf("coin rate lost by later partial update: %v", snap.Economy.CoinRate)
	}
	if snap.Meta.IsPublic {
		t.Fatalf("visibility not applied")
	}
	if snap.QueueSettings.VoteDuration != 30*time.Second {
		t.Fatalf("vote duration not applied: %v", snap.QueueSettings.VoteDuration)
	}

	if err := s.UpdateSettings("missing", SettingsUpdate{CoinRate: &rate}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestViewerRosterAndReverseIndex(t *testing.T) {
	s, _ := newTestStore(time.Now())
	_, _ = s.CreateSession("abc", "k1", true, "")

	if err := s.AddViewer("conn-1", "abc", "alice"); err != nil {
		t.Fatalf("add viewer: %v", err)
	}
	if err := s.AddViewer("conn-2", "abc", "bob"); err != nil {
		t.Fatalf("add viewer: %v", err)
	}

	if got := s.ViewerCount("abc"); got != 2 {
		t.Fatalf("viewer count = %d, want 2", got)
	}
	if id, ok := s.SessionOf("conn-1"); !ok || id != "abc" {
		t.Fatalf("reverse index broken: %q %v", id, ok)
	}

	id, username, ok := s.RemoveViewer("conn-1")
	if !ok || id != "abc" || username != "alice" {
		t.Fatalf("remove viewer = (%q, %q, %v)", id, username, ok)
	}
	if _, ok := s.SessionOf("conn-1"); ok {
		t.Fatalf("reverse index entry survived removal")
	}
	if got := s.ViewerCount("abc"); got != 1 {
		t.Fatalf("viewer count after removal = %d, want 1", got)
	}

	// Session persists across full viewer churn.
	s.RemoveViewer("conn-2")
	if !s.Exists("abc") {
		t.Fatalf("session deleted when last viewer left")
	}
}

func TestActiveViewersDeduplicatesUsernames(t *testing.T) {
	s, _ := newTestStore(time.Now())
	_, _ = s.CreateSession("abc", "k1", true, "")
	_ = s.AddViewer("conn-1", "abc", "alice")
	_ = s.AddViewer("conn-2", "abc", "alice")
	_ = s.AddViewer("conn-3", "abc", "")

	if got := s.ActiveViewers("abc"); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("active viewers = %v, want [alice]", got)
	}
}

func TestPublicSessionsFiltersPrivate(t *testing.T) {
	s, _ := newTestStore(time.Now())
	_, _ = s.CreateSession("pub", "k1", true, "")
	_, _ = s.CreateSession("priv", "k2", false, "")

	list := s.PublicSessions()
	if len(list) != 1 {
		t.Fatalf("public sessions = %d, want 1", len(list))
	}
	if list[0].ID != domain.SessionID("pub") {
		t.Fatalf("wrong session listed: %q", list[0].ID)
	}
}

func TestControlUpdatesForUnknownSessionAreNoOps(t *testing.T) {
	s, _ := newTestStore(time.Now())

	if err := s.SetScreenshot("nope", []byte{1}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("screenshot: expected ErrSessionNotFound, got %v", err)
	}
	if err := s.SetMapImage("nope", []byte{1}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("map image: expected ErrSessionNotFound, got %v", err)
	}
	if err := s.SetGameState("nope", []byte(`{}`)); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("game state: expected ErrSessionNotFound, got %v", err)
	}
}

func TestGameStateWholesaleReplace(t *testing.T) {
	s, clock := newTestStore(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	_, _ = s.CreateSession("abc", "k1", true, "")

	if err := s.SetGameState("abc", []byte(`{"mapName":"Rimtown","extra":1}`)); err != nil {
		t.Fatalf("set state: %v", err)
	}
	*clock = clock.Add(time.Minute)
	if err := s.SetGameState("abc", []byte(`{"mapName":"Outpost"}`)); err != nil {
		t.Fatalf("set state: %v", err)
	}

	snap, _ := s.Snapshot("abc")
	if snap.MapName != "Outpost" {
		t.Fatalf("map name = %q, want Outpost", snap.MapName)
	}
	if string(snap.RawState) != `{"mapName":"Outpost"}` {
		t.Fatalf("raw state not replaced wholesale: %s", snap.RawState)
	}
	if !snap.Meta.LastUpdate.Equal(*clock) {
		t.Fatalf("lastUpdate not bumped")
	}

	// Invalid JSON leaves the previous snapshot in place.
	if err := s.SetGameState("abc", []byte(`{broken`)); err == nil {
		t.Fatalf("invalid JSON accepted")
	}
	snap, _ = s.Snapshot("abc")
	if snap.MapName != "Outpost" {
		t.Fatalf("state clobbered by invalid update")
	}
}
