package events

import (
	"encoding/json"
	"errors"

	"github.com/colonycast/hub/internal/core"
	"github.com/colonycast/hub/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleSelect(c *wsEventConn, data []byte) {
	var p struct {
		Type     string `json:"type"`
		Session  string `json:"session"`
		Username string `json:"username,omitempty"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Session == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.Username != "" {
		if err := domain.ValidateUsername(p.Username); err != nil {
			ctl.sendError(c, err.Error())
			return
		}
		c.setUsername(p.Username)
	}

	err := ctl.Hub.SelectSession(c, domain.SessionID(p.Session), c.Username())
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			ctl.sendError(c, "session not found")
			return
		}
		log.Error().Err(err).Str("module", "events").Str("session", p.Session).Msg("select failed")
		ctl.sendError(c, "select failed")
		return
	}
	ctl.sendJSON(c, map[string]any{"type": "selected", "session": p.Session})
}

func (ctl *Controller) handleLeave(c *wsEventConn) {
	ctl.Hub.LeaveSession(c.id)
	ctl.sendJSON(c, map[string]any{"type": "left"})
}

func (ctl *Controller) handleSetUsername(c *wsEventConn, data []byte) {
	var p struct {
		Type     string `json:"type"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, "bad_payload")
		return
	}
	if err := domain.ValidateUsername(p.Username); err != nil {
		ctl.sendError(c, err.Error())
		return
	}
	c.setUsername(p.Username)
	ctl.sendJSON(c, map[string]any{"type": "username-set", "username": p.Username})
}
