// Package events carries the viewer-facing pub/sub channel: a viewer selects
// a session room, gets the cached state replayed, and receives incremental
// events until it leaves or disconnects.
package events

import (
	"context"
	"net/http"
	"sync"
	"time"

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
	Hub     *app.Hub
	limiter *submitLimiter
}

func NewController(hub *app.Hub) *Controller {
	return &Controller{
		Hub:     hub,
		limiter: newSubmitLimiter(5, time.Minute),
	}
}

// wsEventConn implements core.EventConn with a buffered send channel; a full
// channel drops the event for this one slow client only.
type wsEventConn struct {
	id   domain.ConnID
	conn *websocket.Conn
	send chan core.Frame

	mu       sync.RWMutex
	closed   bool
	username string
}

func (c *wsEventConn) ID() domain.ConnID { return c.id }

func (c *wsEventConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsEventConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsEventConn) setUsername(name string) {
	c.mu.Lock()
	c.username = name
	c.mu.Unlock()
}

func (c *wsEventConn) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// HandleEvents upgrades a viewer's event connection and starts its pumps.
func (ctl *Controller) HandleEvents(ctx context.Context, c *gin.Context) {
	connID := domain.ConnID(c.GetString("client_token"))
	if connID == "" {
		connID = domain.ConnID(uuid.NewString())
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "events").Msg("ws upgrade")
		return
	}

	conn := &wsEventConn{
		id:   connID,
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	ctl.Hub.Rooms.Register(conn)

	// New clients get the public list right away.
	ctl.Hub.PublishSessionsList()

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, conn)
	}()
}
