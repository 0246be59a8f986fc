package core

import (
	"sync"
	"time"

	"github.com/colonycast/hub/internal/domain"
	"github.com/rs/zerolog/log"
)

// sessionState is everything the hub tracks for one game session. All fields
// are guarded by mu; nothing outside this package touches them directly.
type sessionState struct {
	mu sync.RWMutex

	meta     domain.Session
	economy  domain.Economy
	qsetting domain.QueueSettings

	rawState   []byte // last JSON snapshot, verbatim
	gameState  *domain.GameState
	screenshot []byte
	mapImage   []byte

	viewers   map[string]*domain.ViewerLedger // by username
	players   map[domain.ConnID]string        // room roster: conn -> username
	adoptions map[string]*domain.Adoption     // by username

	queue         []*domain.Request
	lastProcessed time.Time
	actions       []domain.Action
}

// Store is the owned registry of all live sessions. One RWMutex guards the
// registry maps; each session carries its own lock so broadcast-heavy
// sessions do not serialize behind unrelated economy ticks.
type Store struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionState
	byConn   map[domain.ConnID]domain.SessionID

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[domain.SessionID]*sessionState),
		byConn:   make(map[domain.ConnID]domain.SessionID),
		now:      time.Now,
	}
}

// SessionSnapshot is a point-in-time read model of one session. Byte slices
// reference the cached buffers, which are replaced wholesale and never
// mutated in place.
type SessionSnapshot struct {
	Meta          domain.Session
	Economy       domain.Economy
	QueueSettings domain.QueueSettings
	RawState      []byte
	MapName       string
	Screenshot    []byte
	MapImage      []byte
	ViewerCount   int
}

// SettingsUpdate is a partial merge into a session's configuration. Nil
// fields are left untouched.
type SettingsUpdate struct {
	IsPublic            *bool
	InteractionPassword *string
	CoinRate            *float64
	ActionCosts         map[string]float64
	VoteDuration        *time.Duration
	AutoExecute         *bool
}

func (s *Store) get(id domain.SessionID) (*sessionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[id]
	return st, ok
}

// CreateSession registers a session if absent; re-registering with the
// matching key refreshes visibility and password. A mismatched key is a
// hijack attempt and mutates nothing.
func (s *Store) CreateSession(id domain.SessionID, streamKey string, isPublic bool, password string) (created bool, err error) {
	now := s.now()
	s.mu.Lock()
	st, ok := s.sessions[id]
	if !ok {
		st = &sessionState{
			meta: domain.Session{
				ID:                  id,
				StreamKey:           streamKey,
				IsPublic:            isPublic,
				InteractionPassword: password,
				CreatedAt:           now,
				LastUpdate:          now,
				LastHeartbeat:       now,
			},
			economy:       domain.Economy{ActionCosts: map[string]float64{}},
			qsetting:      domain.QueueSettings{VoteDuration: time.Minute, AutoExecute: true},
			viewers:       make(map[string]*domain.ViewerLedger),
			players:       make(map[domain.ConnID]string),
			adoptions:     make(map[string]*domain.Adoption),
			lastProcessed: now,
		}
		s.sessions[id] = st
		s.mu.Unlock()
		log.Info().Str("module", "core.store").Str("session", string(id)).Msg("session created")
		return true, nil
	}
	s.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.meta.StreamKey != streamKey {
		return false, ErrStreamKeyMismatch
	}
	st.meta.IsPublic = isPublic
	st.meta.InteractionPassword = password
	st.meta.LastHeartbeat = now
	return false, nil
}

// ValidateKey reports whether key matches the session's stream key.
func (s *Store) ValidateKey(id domain.SessionID, key string) bool {
	st, ok := s.get(id)
	if !ok {
		return false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.meta.StreamKey == key
}

func (s *Store) Exists(id domain.SessionID) bool {
	_, ok := s.get(id)
	return ok
}

func (s *Store) Snapshot(id domain.SessionID) (SessionSnapshot, bool) {
	st, ok := s.get(id)
	if !ok {
		return SessionSnapshot{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	snap := SessionSnapshot{
		Meta:          st.meta,
		Economy:       domain.Economy{CoinRate: st.economy.CoinRate, ActionCosts: copyCosts(st.economy.ActionCosts)},
		QueueSettings: st.qsetting,
		RawState:      st.rawState,
		Screenshot:    st.screenshot,
		MapImage:      st.mapImage,
		ViewerCount:   len(st.players),
	}
	if st.gameState != nil {
		snap.MapName = st.gameState.MapName
	}
	return snap, true
}

func copyCosts(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *Store) UpdateSettings(id domain.SessionID, upd SettingsUpdate) error {
	st, ok := s.get(id)
	if !ok {
		return ErrSessionNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if upd.IsPublic != nil {
		st.meta.IsPublic = *upd.IsPublic
	}
	if upd.InteractionPassword != nil {
		st.meta.InteractionPassword = *upd.InteractionPassword
	}
	if upd.CoinRate != nil {
		st.economy.CoinRate = *upd.CoinRate
	}
	if upd.ActionCosts != nil {
		st.economy.ActionCosts = copyCosts(upd.ActionCosts)
	}
	if upd.VoteDuration != nil {
		st.qsetting.VoteDuration = *upd.VoteDuration
	}
	if upd.AutoExecute != nil {
		st.qsetting.AutoExecute = *upd.AutoExecute
	}
	return nil
}

// SetLive flips the producer-alive flag on the session.
func (s *Store) SetLive(id domain.SessionID, live bool) {
	st, ok := s.get(id)
	if !ok {
		return
	}
	st.mu.Lock()
	st.meta.Live = live
	st.mu.Unlock()
}

// TouchHeartbeat refreshes the liveness timestamps. The hub never expires
// sessions itself; an external reaper may read these through Snapshot.
func (s *Store) TouchHeartbeat(id domain.SessionID) {
	st, ok := s.get(id)
	if !ok {
		return
	}
	now := s.now()
	st.mu.Lock()
	st.meta.LastHeartbeat = now
	st.mu.Unlock()
}

func (s *Store) SetScreenshot(id domain.SessionID, data []byte) error {
	st, ok := s.get(id)
	if !ok {
		return ErrSessionNotFound
	}
	now := s.now()
	st.mu.Lock()
	st.screenshot = data
	st.meta.LastUpdate = now
	st.meta.LastHeartbeat = now
	st.mu.Unlock()
	return nil
}

func (s *Store) SetMapImage(id domain.SessionID, data []byte) error {
	st, ok := s.get(id)
	if !ok {
		return ErrSessionNotFound
	}
	now := s.now()
	st.mu.Lock()
	st.mapImage = data
	st.meta.LastUpdate = now
	st.meta.LastHeartbeat = now
	st.mu.Unlock()
	return nil
}

// AddViewer joins a connection to a session's roster and records the reverse
// index so a disconnect resolves without scanning all sessions.
func (s *Store) AddViewer(conn domain.ConnID, id domain.SessionID, username string) error {
	st, ok := s.get(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	s.byConn[conn] = id
	s.mu.Unlock()

	now := s.now()
	st.mu.Lock()
	st.players[conn] = username
	if username != "" {
		if led, ok := st.viewers[username]; ok {
			led.LastSeen = now
		} else {
			st.viewers[username] = &domain.ViewerLedger{WatchStart: now, LastSeen: now}
		}
	}
	st.mu.Unlock()
	return nil
}

// RemoveViewer drops a connection from whatever session it joined. The
// Session itself persists across viewer churn.
func (s *Store) RemoveViewer(conn domain.ConnID) (domain.SessionID, string, bool) {
	s.mu.Lock()
	id, ok := s.byConn[conn]
	if ok {
		delete(s.byConn, conn)
	}
	s.mu.Unlock()
	if !ok {
		return "", "", false
	}
	st, ok := s.get(id)
	if !ok {
		return id, "", false
	}
	st.mu.Lock()
	username := st.players[conn]
	delete(st.players, conn)
	st.mu.Unlock()
	return id, username, true
}

// SessionOf resolves the session a connection has joined, if any.
func (s *Store) SessionOf(conn domain.ConnID) (domain.SessionID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byConn[conn]
	return id, ok
}

// PlayerConns lists the connections a username holds in a session. Used to
// scope coin-update events to one viewer.
func (s *Store) PlayerConns(id domain.SessionID, username string) []domain.ConnID {
	st, ok := s.get(id)
	if !ok {
		return nil
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	var out []domain.ConnID
	for conn, name := range st.players {
		if name == username {
			out = append(out, conn)
		}
	}
	return out
}

// ActiveViewers returns the distinct usernames currently in the room.
func (s *Store) ActiveViewers(id domain.SessionID) []string {
	st, ok := s.get(id)
	if !ok {
		return nil
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	seen := make(map[string]struct{}, len(st.players))
	out := make([]string, 0, len(st.players))
	for _, name := range st.players {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (s *Store) ViewerCount(id domain.SessionID) int {
	st, ok := s.get(id)
	if !ok {
		return 0
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.players)
}

// SessionIDs lists all registered sessions, for the tick loops.
func (s *Store) SessionIDs() []domain.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}

// PublicSessions builds the derived read model for the sessions-list event.
// Sessions flagged private are filtered out.
func (s *Store) PublicSessions() []domain.SessionSummary {
	s.mu.RLock()
	states := make(map[domain.SessionID]*sessionState, len(s.sessions))
	for id, st := range s.sessions {
		states[id] = st
	}
	s.mu.RUnlock()

	out := make([]domain.SessionSummary, 0, len(states))
	for id, st := range states {
		st.mu.RLock()
		if st.meta.IsPublic {
			sum := domain.SessionSummary{
				ID:          id,
				Live:        st.meta.Live,
				ViewerCount: len(st.players),
				LastUpdate:  st.meta.LastUpdate,
			}
			if st.gameState != nil {
				sum.MapName = st.gameState.MapName
			}
			out = append(out, sum)
		}
		st.mu.RUnlock()
	}
	return out
}
