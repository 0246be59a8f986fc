package core

import (
	"sort"
	"time"

	"github.com/colonycast/hub/internal/domain"
	"github.com/rs/zerolog/log"
)

// SubmitRequest validates the interaction password, charges the submitter
// eagerly, and appends the request to the session's queue. A rejected request
// is refunded later; approval does not re-charge.
func (s *Store) SubmitRequest(id domain.SessionID, typ domain.RequestType, action, data, submittedBy, password string) (*domain.Request, error) {
	st, ok := s.get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := s.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.meta.InteractionPassword != "" && st.meta.InteractionPassword != password {
		return nil, ErrPasswordMismatch
	}
	var cost float64
	if typ == domain.RequestAction {
		cost = st.economy.ActionCosts[action]
	}
	if cost > 0 {
		led, ok := st.viewers[submittedBy]
		if !ok || led.Coins < cost {
			return nil, ErrInsufficientFunds
		}
		led.Coins -= cost
	}
	req := domain.NewRequest(typ, action, data, cost, submittedBy, now)
	st.queue = append(st.queue, req)
	cp := *req
	return &cp, nil
}

// VoteRequest records a vote. Re-voting replaces the voter's previous vote
// instead of stacking.
func (s *Store) VoteRequest(id domain.SessionID, requestID, voter string, vt domain.VoteType) error {
	st, ok := s.get(id)
	if !ok {
		return ErrSessionNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, req := range st.queue {
		if req.ID != requestID {
			continue
		}
		for i := range req.Votes {
			if req.Votes[i].Voter == voter {
				req.Votes[i].Type = vt
				return nil
			}
		}
		req.Votes = append(req.Votes, domain.Vote{Voter: voter, Type: vt})
		return nil
	}
	return ErrRequestNotFound
}

// ApproveRequest removes a request from the queue and dispatches it to the
// session's outbound action list.
func (s *Store) ApproveRequest(id domain.SessionID, requestID string) (domain.Action, error) {
	st, ok := s.get(id)
	if !ok {
		return domain.Action{}, ErrSessionNotFound
	}
	now := s.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, req := range st.queue {
		if req.ID != requestID {
			continue
		}
		st.queue = append(st.queue[:i], st.queue[i+1:]...)
		act := dispatch(req, now)
		st.actions = append(st.actions, act)
		return act, nil
	}
	return domain.Action{}, ErrRequestNotFound
}

// RejectRequest refunds the submitter and removes the request.
func (s *Store) RejectRequest(id domain.SessionID, requestID string) error {
	st, ok := s.get(id)
	if !ok {
		return ErrSessionNotFound
	}
	now := s.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, req := range st.queue {
		if req.ID != requestID {
			continue
		}
		st.queue = append(st.queue[:i], st.queue[i+1:]...)
		if req.Cost > 0 {
			led, ok := st.viewers[req.SubmittedBy]
			if !ok {
				led = &domain.ViewerLedger{WatchStart: now}
				st.viewers[req.SubmittedBy] = led
			}
			led.Coins += req.Cost
		}
		return nil
	}
	return ErrRequestNotFound
}

// ProcessQueue runs one queue-tick cycle for a session: when the vote window
// has elapsed, the request with the highest net votes is promoted into the
// action list. Ties keep submission order. An empty queue keeps lastProcessed
// current so a newly-arriving request starts a full window. force bypasses
// both the window and the autoExecute flag.
func (s *Store) ProcessQueue(id domain.SessionID, force bool) (*domain.Action, bool, error) {
	st, ok := s.get(id)
	if !ok {
		return nil, false, ErrSessionNotFound
	}
	now := s.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.queue) == 0 {
		st.lastProcessed = now
		return nil, false, nil
	}
	if !force {
		if !st.qsetting.AutoExecute {
			return nil, false, nil
		}
		if now.Sub(st.lastProcessed) < st.qsetting.VoteDuration {
			return nil, false, nil
		}
	}

	sort.SliceStable(st.queue, func(i, j int) bool {
		return st.queue[i].NetVotes() > st.queue[j].NetVotes()
	})
	top := st.queue[0]
	st.queue = st.queue[1:]
	act := dispatch(top, now)
	st.actions = append(st.actions, act)
	st.lastProcessed = now
	log.Info().Str("module", "core.queue").Str("session", string(id)).Str("action", act.Action).Int("votes", act.Votes).Msg("request promoted")
	return &act, true, nil
}

// dispatch converts a winning request into an outbound action. Suggestions
// become a synthesized send-letter action carrying the suggestion text and
// its net vote count; anything else passes action/data through unchanged.
func dispatch(req *domain.Request, now time.Time) domain.Action {
	act := domain.Action{
		Action:       req.Action,
		Data:         req.Data,
		Votes:        req.NetVotes(),
		SubmittedBy:  req.SubmittedBy,
		RequestID:    req.ID,
		DispatchedAt: now,
	}
	if req.Type == domain.RequestSuggestion {
		act.Action = "send_letter"
	}
	return act
}

// QueueSnapshot returns copies of the queued requests plus the settings.
func (s *Store) QueueSnapshot(id domain.SessionID) ([]domain.Request, domain.QueueSettings, bool) {
	st, ok := s.get(id)
	if !ok {
		return nil, domain.QueueSettings{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]domain.Request, 0, len(st.queue))
	for _, req := range st.queue {
		cp := *req
		cp.Votes = append([]domain.Vote(nil), req.Votes...)
		out = append(out, cp)
	}
	return out, st.qsetting, true
}

// DrainActions atomically takes the outbound action list. The game mod polls
// this to pick up dispatched actions.
func (s *Store) DrainActions(id domain.SessionID) ([]domain.Action, error) {
	st, ok := s.get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.actions
	st.actions = nil
	return out, nil
}
