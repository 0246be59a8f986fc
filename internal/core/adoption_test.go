package core

import (
	"testing"
	"time"
)

func TestAdoptionIdempotent(t *testing.T) {
	s, _ := newTestStore(time.Now())
	_, _ = s.CreateSession("abc", "k1", true, "")

	state := []byte(`{"mapName":"Rimtown","adoptions":[{"username":"alice","pawnId":"p-1","name":"Alice"}]}`)
	if err := s.SetGameState("abc", state); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if err := s.SetGameState("abc", state); err != nil {
		t.Fatalf("set state again: %v", err)
	}

	records := s.Adoptions("abc")
	if len(records) != 1 {
		t.Fatalf("adoption records = %d, want 1", len(records))
	}
	if records[0].Username != "alice" || records[0].PawnID != "p-1" {
		t.Fatalf("record corrupted: %+v", records[0])
	}
}

func TestAdoptionSelfHealsFromRoster(t *testing.T) {
	s, _ := newTestStore(time.Now())
	_, _ = s.CreateSession("abc", "k1", true, "")
	_ = s.AddViewer("conn-1", "abc", "alice")

	// Explicit adoption links alice to pawn A.
	if err := s.SetGameState("abc", []byte(`{"adoptions":[{"username":"alice","pawnId":"A"}]}`)); err != nil {
		t.Fatalf("set state: %v", err)
	}

	// After a save/reload the roster carries alice under a new pawn id.
	if err := s.SetGameState("abc", []byte(`{"colonists":[{"id":"B","name":"alice"}]}`)); err != nil {
		t.Fatalf("set state: %v", err)
	}

	records := s.Adoptions("abc")
	if len(records) != 1 {
		t.Fatalf("self-heal duplicated the record: %d records", len(records))
	}
	if records[0].PawnID != "B" {
		t.Fatalf("record not re-linked: pawn %q, want B", records[0].PawnID)
	}
}

func TestAdoptionAutoLinkRequiresKnownViewer(t *testing.T) {
	s, _ := newTestStore(time.Now())
	_, _ = s.CreateSession("abc", "k1", true, "")
	_ = s.AddViewer("conn-1", "abc", "alice")

	state := []byte(`{"colonists":[{"id":"p-1","name":"alice"},{"id":"p-2","name":"Randy"}]}`)
	if err := s.SetGameState("abc", state); err != nil {
		t.Fatalf("set state: %v", err)
	}

	records := s.Adoptions("abc")
	if len(records) != 1 {
		t.Fatalf("adoption records = %d, want only the known viewer", len(records))
	}
	if records[0].Username != "alice" || records[0].PawnID != "p-1" {
		t.Fatalf("auto-link wrong: %+v", records[0])
	}
}

func TestAdoptionExplicitPairWinsOverMissingName(t *testing.T) {
	s, _ := newTestStore(time.Now())
	_, _ = s.CreateSession("abc", "k1", true, "")

	// Explicit pairs need no room presence.
	if err := s.SetGameState("abc", []byte(`{"adoptions":[{"username":"carol","pawnId":"p-9"}]}`)); err != nil {
		t.Fatalf("set state: %v", err)
	}
	records := s.Adoptions("abc")
	if len(records) != 1 || records[0].Username != "carol" {
		t.Fatalf("explicit adoption not recorded: %+v", records)
	}
}
