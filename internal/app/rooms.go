package app

import (
	"sync"

	"github.com/colonycast/hub/internal/core"
	"github.com/colonycast/hub/internal/domain"
	"github.com/rs/zerolog/log"
)

// Rooms is the room-per-session fan-out layer for viewer event channels.
// It owns membership only; transport resources belong to the adapters.
type Rooms struct {
	mu      sync.RWMutex
	conns   map[domain.ConnID]core.EventConn
	members map[domain.SessionID]map[domain.ConnID]core.EventConn
	byConn  map[domain.ConnID]domain.SessionID
}

func NewRooms() *Rooms {
	return &Rooms{
		conns:   make(map[domain.ConnID]core.EventConn),
		members: make(map[domain.SessionID]map[domain.ConnID]core.EventConn),
		byConn:  make(map[domain.ConnID]domain.SessionID),
	}
}

// Register tracks a connected event client; it receives broadcast-all events
// (sessions-list) even before selecting a session.
func (r *Rooms) Register(conn core.EventConn) {
	r.mu.Lock()
	r.conns[conn.ID()] = conn
	r.mu.Unlock()
	log.Info().Str("module", "app.rooms").Str("conn", string(conn.ID())).Msg("event client registered")
}

// Unregister drops a client from the global set and its room, if any.
func (r *Rooms) Unregister(connID domain.ConnID) (domain.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
	return r.leaveLocked(connID)
}

// Join moves a connection into a session's room, leaving any prior room
// first. Returns the room left, if any.
func (r *Rooms) Join(conn core.EventConn, id domain.SessionID) (domain.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, left := r.leaveLocked(conn.ID())
	room, ok := r.members[id]
	if !ok {
		room = make(map[domain.ConnID]core.EventConn)
		r.members[id] = room
	}
	room[conn.ID()] = conn
	r.byConn[conn.ID()] = id
	return prev, left
}

// Leave removes a connection from its room without dropping the client.
func (r *Rooms) Leave(connID domain.ConnID) (domain.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(connID)
}

func (r *Rooms) leaveLocked(connID domain.ConnID) (domain.SessionID, bool) {
	id, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	if room, ok := r.members[id]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.members, id)
		}
	}
	return id, true
}

// RoomOf resolves the session a connection currently watches.
func (r *Rooms) RoomOf(connID domain.ConnID) (domain.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[connID]
	return id, ok
}

// Broadcast fans a frame out to every member of a room, continuing past
// per-recipient failures.
func (r *Rooms) Broadcast(id domain.SessionID, data core.Frame) core.PublishResult {
	r.mu.RLock()
	room := r.members[id]
	targets := make([]core.EventConn, 0, len(room))
	for _, c := range room {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	res := core.PublishResult{}
	for _, c := range targets {
		if err := c.TrySend(data); err != nil {
			res.Dropped++
			continue
		}
		res.SentTo++
	}
	return res
}

// BroadcastAll sends a frame to every registered event client.
func (r *Rooms) BroadcastAll(data core.Frame) core.PublishResult {
	r.mu.RLock()
	targets := make([]core.EventConn, 0, len(r.conns))
	for _, c := range r.conns {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	res := core.PublishResult{}
	for _, c := range targets {
		if err := c.TrySend(data); err != nil {
			res.Dropped++
			continue
		}
		res.SentTo++
	}
	return res
}

// Send delivers a frame to one connection, if it is still registered.
func (r *Rooms) Send(connID domain.ConnID, data core.Frame) error {
	r.mu.RLock()
	c, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return core.ErrConnClosed
	}
	return c.TrySend(data)
}

// MemberCount reports room occupancy.
func (r *Rooms) MemberCount(id domain.SessionID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[id])
}
