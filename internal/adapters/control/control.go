// Package control ingests the producer's auxiliary channel: JSON game state
// and raw preview images, header-prefixed, one message per binary frame.
package control

import (
	"context"
	"errors"
	"net/http"

	"github.com/colonycast/hub/internal/adapters/creds"
	"github.com/colonycast/hub/internal/app"
	"github.com/colonycast/hub/internal/core"
	"github.com/colonycast/hub/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Hub       *app.Hub
	ReadLimit int64
}

func NewController(hub *app.Hub, readLimit int64) *Controller {
	return &Controller{Hub: hub, ReadLimit: readLimit}
}

// HandleControl accepts the producer's control connection. Credentials are
// checked before the upgrade; a bad frame later only drops that frame.
func (ctl *Controller) HandleControl(ctx context.Context, c *gin.Context) {
	id := domain.SessionID(creds.SessionID(c))
	key := creds.StreamKey(c)
	if id == "" || key == "" {
		log.Warn().Str("module", "control").Msg("control connect missing session id or key")
		c.Status(http.StatusUnauthorized)
		return
	}
	if _, err := ctl.Hub.Store.CreateSession(id, key, creds.IsPublic(c), creds.InteractionPassword(c)); err != nil {
		if errors.Is(err, core.ErrStreamKeyMismatch) {
			log.Warn().Str("module", "control").Str("session", string(id)).Msg("control connect rejected: stream key mismatch")
		}
		c.Status(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "control").Msg("control upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	ctl.Hub.Store.SetLive(id, true)
	ctl.Hub.PublishSessionsList()
	log.Info().Str("module", "control").Str("session", string(id)).Msg("control channel connected")

	for {
		select {
		case <-ctx.Done():
			ctl.closeControl(id, ws)
			return
		default:
		}
		mt, data, err := ws.ReadMessage()
		if err != nil {
			ctl.closeControl(id, ws)
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		ctl.handleMessage(id, data)
	}
}

func (ctl *Controller) handleMessage(id domain.SessionID, data []byte) {
	frame, ok := ParseFrame(data)
	if !ok {
		// Truncated header; drop silently per the wire contract.
		return
	}
	switch frame.Type {
	case MsgScreenshot:
		ctl.Hub.HandleScreenshot(id, frame.Payload)
	case MsgState:
		ctl.Hub.HandleGameState(id, frame.Payload)
	case MsgMapImage:
		ctl.Hub.HandleMapImage(id, frame.Payload)
	default:
		log.Warn().Str("module", "control").Str("session", string(id)).Uint8("type", uint8(frame.Type)).Msg("unknown control message type")
	}
}

func (ctl *Controller) closeControl(id domain.SessionID, ws *websocket.Conn) {
	_ = ws.Close()
	ctl.Hub.EndSession(id)
	log.Info().Str("module", "control").Str("session", string(id)).Msg("control channel closed")
}
