package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsEventConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "events").Str("conn", string(c.id)).Msg("write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, c *wsEventConn) {
	defer func() {
		c.Close()
		ctl.Hub.DropEventClient(c.id)
		log.Info().Str("module", "events").Str("conn", string(c.id)).Msg("event client disconnected")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleMessage(c, data)
		}
	}
}

func (ctl *Controller) handleMessage(c *wsEventConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "events").Str("conn", string(c.id)).Msg("bad json")
		return
	}

	switch env.Type {
	case "select":
		ctl.handleSelect(c, data)
	case "leave":
		ctl.handleLeave(c)
	case "set-username":
		ctl.handleSetUsername(c, data)
	case "submit-request":
		ctl.handleSubmit(c, data)
	case "vote":
		ctl.handleVote(c, data)
	case "ping":
		ctl.sendJSON(c, map[string]any{"type": "pong"})
	default:
		log.Warn().Str("module", "events").Str("type", env.Type).Msg("unknown event message")
	}
}

func (ctl *Controller) sendJSON(c *wsEventConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "events").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *wsEventConn, msg string) {
	ctl.sendJSON(c, map[string]any{"type": "error", "error": msg})
}
