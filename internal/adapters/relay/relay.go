// Package relay carries the binary fMP4 media channel: one producer per
// session pushing chunks in, any number of viewer subscriptions fanning out.
package relay

import (
	"context"
	"errors"
	"net/http"

	"github.com/colonycast/hub/internal/adapters/creds"
	"github.com/colonycast/hub/internal/app"
	"github.com/colonycast/hub/internal/core"
	"github.com/colonycast/hub/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Hub            *app.Hub
	ReadLimit      int64
	HeartbeatEvery int
}

func NewController(hub *app.Hub, readLimit int64, heartbeatEvery int) *Controller {
	if heartbeatEvery <= 0 {
		heartbeatEvery = 30
	}
	return &Controller{Hub: hub, ReadLimit: readLimit, HeartbeatEvery: heartbeatEvery}
}

// HandleProduce accepts the producer's media connection. The session id and
// stream key must be present and the key must match any prior registration;
// a mismatch closes the attempt before the upgrade, leaking nothing.
func (ctl *Controller) HandleProduce(ctx context.Context, c *gin.Context) {
	id := domain.SessionID(creds.SessionID(c))
	key := creds.StreamKey(c)
	if id == "" || key == "" {
		log.Warn().Str("module", "relay").Msg("producer missing session id or key")
		c.Status(http.StatusUnauthorized)
		return
	}
	created, err := ctl.Hub.Store.CreateSession(id, key, creds.IsPublic(c), creds.InteractionPassword(c))
	if err != nil {
		if errors.Is(err, core.ErrStreamKeyMismatch) {
			log.Warn().Str("module", "relay").Str("session", string(id)).Msg("producer rejected: stream key mismatch")
		}
		c.Status(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("producer upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	pc := &producerConn{ws: ws}
	ctl.Hub.Streams.AttachProducer(id, pc)
	if created {
		ctl.Hub.PublishSessionsList()
	}
	log.Info().Str("module", "relay").Str("session", string(id)).Msg("producer connected")

	msgCount := 0
	for {
		select {
		case <-ctx.Done():
			ctl.detachProducer(id, pc)
			return
		default:
		}
		mt, data, err := ws.ReadMessage()
		if err != nil {
			ctl.detachProducer(id, pc)
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		msgCount++
		if msgCount%ctl.HeartbeatEvery == 0 {
			ctl.Hub.Store.TouchHeartbeat(id)
		}
		ctl.Hub.Streams.Broadcast(id, data)
	}
}

func (ctl *Controller) detachProducer(id domain.SessionID, pc *producerConn) {
	pc.Close()
	ctl.Hub.Streams.DetachProducer(id, pc)
	log.Info().Str("module", "relay").Str("session", string(id)).Msg("producer disconnected")
}

// HandleWatch subscribes a viewer to a session's media stream. The cached
// init segment, when present, is the first frame the viewer receives.
func (ctl *Controller) HandleWatch(ctx context.Context, c *gin.Context) {
	id := domain.SessionID(creds.SessionID(c))
	if id == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	connID := domain.ConnID(c.GetString("client_token"))
	if connID == "" {
		connID = domain.ConnID(uuid.NewString())
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("viewer upgrade")
		return
	}

	vc := newViewerConn(connID, ws)
	go vc.writeLoop(ctx)
	ctl.Hub.Streams.AddViewer(id, vc)
	ctl.Hub.MediaViewerCountChanged(id)
	log.Info().Str("module", "relay").Str("session", string(id)).Str("viewer", string(connID)).Msg("viewer connected")

	// Viewers send nothing meaningful; reading only detects the close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	vc.Close()
	ctl.Hub.Streams.RemoveViewer(id, connID)
	ctl.Hub.MediaViewerCountChanged(id)
	log.Info().Str("module", "relay").Str("session", string(id)).Str("viewer", string(connID)).Msg("viewer disconnected")
}
