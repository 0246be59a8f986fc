package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonycast/hub/internal/domain"
	"github.com/rs/zerolog/log"
)

// SetGameState replaces the session's state snapshot wholesale and runs
// adoption reconciliation. Invalid JSON rejects the whole update and leaves
// the previous snapshot in place.
func (s *Store) SetGameState(id domain.SessionID, raw []byte) error {
	st, ok := s.get(id)
	if !ok {
		return ErrSessionNotFound
	}
	var gs domain.GameState
	if err := json.Unmarshal(raw, &gs); err != nil {
		return fmt.Errorf("parse game state: %w", err)
	}
	now := s.now()
	st.mu.Lock()
	st.rawState = raw
	st.gameState = &gs
	st.meta.LastUpdate = now
	st.meta.LastHeartbeat = now
	st.reconcileAdoptions(&gs, now)
	st.mu.Unlock()
	return nil
}

// reconcileAdoptions merges adoption records from two sources: explicit
// (username, pawnId) pairs carried in the update, and colonist roster entries
// whose display name matches a known viewer. Records are idempotent per
// username; a roster entry carrying a different pawn id than the stored
// record overwrites it in place, healing id churn across a save/reload.
// Caller holds st.mu.
func (st *sessionState) reconcileAdoptions(gs *domain.GameState, now time.Time) {
	for _, pair := range gs.Adoptions {
		if pair.Username == "" || pair.PawnID == "" {
			continue
		}
		if rec, ok := st.adoptions[pair.Username]; ok {
			if rec.PawnID != pair.PawnID {
				rec.PawnID = pair.PawnID
				if pair.PawnName != "" {
					rec.PawnName = pair.PawnName
				}
			}
			continue
		}
		st.adoptions[pair.Username] = &domain.Adoption{
			Username:  pair.Username,
			PawnID:    pair.PawnID,
			PawnName:  pair.PawnName,
			AdoptedAt: now,
		}
	}

	// Name-matching is the lower-confidence path: only viewers the session
	// already knows about can be auto-linked. Roster entries matching nobody
	// are not an error.
	for _, col := range gs.Colonists {
		if col.Name == "" || col.ID == "" {
			continue
		}
		if !st.knowsViewer(col.Name) {
			continue
		}
		rec, ok := st.adoptions[col.Name]
		if !ok {
			st.adoptions[col.Name] = &domain.Adoption{
				Username:  col.Name,
				PawnID:    col.ID,
				PawnName:  col.Name,
				AdoptedAt: now,
			}
			log.Debug().Str("module", "core.store").Str("session", string(st.meta.ID)).Str("username", col.Name).Str("pawn", col.ID).Msg("adoption auto-linked")
			continue
		}
		if rec.PawnID != col.ID {
			rec.PawnID = col.ID
			log.Debug().Str("module", "core.store").Str("session", string(st.meta.ID)).Str("username", col.Name).Str("pawn", col.ID).Msg("adoption re-linked")
		}
	}
}

func (st *sessionState) knowsViewer(username string) bool {
	if _, ok := st.viewers[username]; ok {
		return true
	}
	for _, name := range st.players {
		if name == username {
			return true
		}
	}
	return false
}

// Adoptions returns the active adoption records of a session.
func (s *Store) Adoptions(id domain.SessionID) []domain.Adoption {
	st, ok := s.get(id)
	if !ok {
		return nil
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]domain.Adoption, 0, len(st.adoptions))
	for _, rec := range st.adoptions {
		out = append(out, *rec)
	}
	return out
}
