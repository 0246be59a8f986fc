package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/colonycast/hub/internal/core"
	"github.com/colonycast/hub/internal/domain"
	"github.com/rs/zerolog/log"
)

// submitLimiter is a sliding-window rate limit on request submission per
// username, so one viewer cannot flood a session's queue.
type submitLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
}

func newSubmitLimiter(limit int, interval time.Duration) *submitLimiter {
	return &submitLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *submitLimiter) Allow(username string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[username]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		return false
	}
	fresh = append(fresh, now)
	rl.history[username] = fresh
	return true
}

func (ctl *Controller) handleSubmit(c *wsEventConn, data []byte) {
	var p struct {
		Type     string `json:"type"`
		Kind     string `json:"kind"` // action | suggestion
		Action   string `json:"action"`
		Data     string `json:"data"`
		Password string `json:"password,omitempty"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, "bad_payload")
		return
	}
	username := c.Username()
	if username == "" {
		ctl.sendError(c, "username required")
		return
	}
	id, ok := ctl.Hub.Rooms.RoomOf(c.id)
	if !ok {
		ctl.sendError(c, "no session selected")
		return
	}
	if !ctl.limiter.Allow(username) {
		ctl.sendError(c, "rate limited")
		return
	}

	typ := domain.RequestAction
	if p.Kind == string(domain.RequestSuggestion) {
		typ = domain.RequestSuggestion
	}
	req, err := ctl.Hub.Store.SubmitRequest(id, typ, p.Action, p.Data, username, p.Password)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInsufficientFunds):
			ctl.sendError(c, "insufficient funds")
		case errors.Is(err, core.ErrPasswordMismatch):
			ctl.sendError(c, "wrong password")
		default:
			log.Error().Err(err).Str("module", "events").Str("session", string(id)).Msg("submit failed")
			ctl.sendError(c, "submit failed")
		}
		return
	}
	ctl.sendJSON(c, map[string]any{"type": "submitted", "request": req})
	ctl.Hub.PublishQueueUpdate(id)
	ctl.Hub.PublishCoinUpdate(id, username, ctl.Hub.Store.Balance(id, username))
}

func (ctl *Controller) handleVote(c *wsEventConn, data []byte) {
	var p struct {
		Type    string `json:"type"`
		Request string `json:"request"`
		Vote    string `json:"vote"` // upvote | downvote
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Request == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	username := c.Username()
	if username == "" {
		ctl.sendError(c, "username required")
		return
	}
	id, ok := ctl.Hub.Rooms.RoomOf(c.id)
	if !ok {
		ctl.sendError(c, "no session selected")
		return
	}
	vt := domain.VoteUp
	if p.Vote == string(domain.VoteDown) {
		vt = domain.VoteDown
	}
	if err := ctl.Hub.Store.VoteRequest(id, p.Request, username, vt); err != nil {
		ctl.sendError(c, "request not found")
		return
	}
	ctl.Hub.PublishQueueUpdate(id)
}
