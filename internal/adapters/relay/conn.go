package relay

import (
	"context"
	"sync"
	"time"

	"github.com/colonycast/hub/internal/core"
	"github.com/colonycast/hub/internal/domain"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// viewerConn implements core.MediaConn over a WebSocket. Outgoing frames go
// through an ordered queue drained by a single write loop; the byte count of
// queued frames backs the relay's backpressure decision. The queue itself is
// unbounded: the relay stops enqueueing media once the count crosses the
// threshold, and init segments are rare and must never be lost.
type viewerConn struct {
	id domain.ConnID
	ws *websocket.Conn

	mu       sync.Mutex
	queue    []core.Frame
	buffered int
	closed   bool

	notify chan struct{}
	once   sync.Once
}

func newViewerConn(id domain.ConnID, ws *websocket.Conn) *viewerConn {
	return &viewerConn{
		id:     id,
		ws:     ws,
		notify: make(chan struct{}, 1),
	}
}

func (c *viewerConn) ID() domain.ConnID { return c.id }

func (c *viewerConn) Send(f core.Frame) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.ErrConnClosed
	}
	c.queue = append(c.queue, f)
	c.buffered += len(f)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *viewerConn) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffered
}

func (c *viewerConn) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		_ = c.ws.Close()
		select {
		case c.notify <- struct{}{}:
		default:
		}
	})
}

// writeLoop drains the queue in order. A write error or deadline kills the
// connection; the read side notices the close and unregisters the viewer.
func (c *viewerConn) writeLoop(ctx context.Context) {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.notify:
		}
		for {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			if len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			f := c.queue[0]
			c.queue = c.queue[1:]
			c.buffered -= len(f)
			c.mu.Unlock()

			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, f); err != nil {
				return
			}
		}
	}
}

// producerConn is the closable handle the registry keeps on a producer
// socket so a superseding producer can evict it.
type producerConn struct {
	ws   *websocket.Conn
	once sync.Once
}

func (c *producerConn) Close() {
	c.once.Do(func() { _ = c.ws.Close() })
}
