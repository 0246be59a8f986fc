package app

import (
	"encoding/json"

	"github.com/colonycast/hub/internal/core"
	"github.com/colonycast/hub/internal/domain"
	"github.com/rs/zerolog/log"
)

// Event names on the viewer-facing channel.
const (
	EvSessionsList = "sessions-list"
	EvScreenshot   = "screenshot-update"
	EvGameState    = "gamestate-update"
	EvMapImage     = "map-image-update"
	EvCoinUpdate   = "coin-update"
	EvQueueUpdate  = "queue-update"
	EvViewerCount  = "viewer-count-update"
	EvSessionEnded = "session-ended"
)

// Event is the envelope every viewer-facing message travels in.
type Event struct {
	Type    string           `json:"type"`
	Session domain.SessionID `json:"session,omitempty"`
	Payload any              `json:"payload,omitempty"`
}

// RelayPolicy decides what to do when a session's viewer count changes.
// The hub only exposes the hook; pull-based CDN distribution lives outside.
type RelayPolicy interface {
	OnViewerCountChange(id domain.SessionID, viewers int)
}

// ThresholdPolicy logs when the viewer count crosses the fallback threshold.
type ThresholdPolicy struct {
	Threshold int
}

func (p ThresholdPolicy) OnViewerCountChange(id domain.SessionID, viewers int) {
	if p.Threshold > 0 && viewers == p.Threshold {
		log.Warn().Str("module", "app.hub").Str("session", string(id)).Int("viewers", viewers).Msg("viewer count crossed fallback threshold")
	}
}

// Hub wires the session store, the media relay registry and the event rooms
// together. Adapters call into it; it never touches sockets itself.
type Hub struct {
	Store   *core.Store
	Streams *core.StreamRegistry
	Rooms   *Rooms
	Policy  RelayPolicy
}

func NewHub(store *core.Store, streams *core.StreamRegistry, rooms *Rooms, policy RelayPolicy) *Hub {
	return &Hub{Store: store, Streams: streams, Rooms: rooms, Policy: policy}
}

func marshalEvent(ev Event) (core.Frame, bool) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("event", ev.Type).Msg("event marshal")
		return nil, false
	}
	return b, true
}

func (h *Hub) publish(id domain.SessionID, ev Event) {
	if frame, ok := marshalEvent(ev); ok {
		h.Rooms.Broadcast(id, frame)
	}
}

func (h *Hub) publishAll(ev Event) {
	if frame, ok := marshalEvent(ev); ok {
		h.Rooms.BroadcastAll(frame)
	}
}

// HandleScreenshot stores the live preview buffer and republishes it.
func (h *Hub) HandleScreenshot(id domain.SessionID, data []byte) {
	if err := h.Store.SetScreenshot(id, data); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("session", string(id)).Msg("screenshot for unknown session dropped")
		return
	}
	h.publish(id, Event{Type: EvScreenshot, Session: id, Payload: data})
}

// HandleMapImage stores the full map render buffer and republishes it.
func (h *Hub) HandleMapImage(id domain.SessionID, data []byte) {
	if err := h.Store.SetMapImage(id, data); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("session", string(id)).Msg("map image for unknown session dropped")
		return
	}
	h.publish(id, Event{Type: EvMapImage, Session: id, Payload: data})
}

// HandleGameState replaces the session's state snapshot and republishes it.
// A malformed payload drops this one message and nothing else.
func (h *Hub) HandleGameState(id domain.SessionID, raw []byte) {
	if err := h.Store.SetGameState(id, raw); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("session", string(id)).Msg("game state update dropped")
		return
	}
	h.publish(id, Event{Type: EvGameState, Session: id, Payload: json.RawMessage(raw)})
	h.PublishSessionsList()
}

// SelectSession joins a viewer to a session room and replays the cached
// state: screenshot, game state and the viewer's own balance, each exactly
// once, without waiting for the next producer update.
func (h *Hub) SelectSession(conn core.EventConn, id domain.SessionID, username string) error {
	snap, ok := h.Store.Snapshot(id)
	if !ok {
		return core.ErrSessionNotFound
	}

	if prev, left := h.Rooms.Join(conn, id); left && prev != id {
		h.Store.RemoveViewer(conn.ID())
		h.viewerCountChanged(prev)
	}
	if err := h.Store.AddViewer(conn.ID(), id, username); err != nil {
		return err
	}

	if snap.Screenshot != nil {
		if frame, ok := marshalEvent(Event{Type: EvScreenshot, Session: id, Payload: snap.Screenshot}); ok {
			_ = conn.TrySend(frame)
		}
	}
	if snap.RawState != nil {
		if frame, ok := marshalEvent(Event{Type: EvGameState, Session: id, Payload: json.RawMessage(snap.RawState)}); ok {
			_ = conn.TrySend(frame)
		}
	}
	if username != "" {
		balance := h.Store.Balance(id, username)
		if frame, ok := marshalEvent(Event{Type: EvCoinUpdate, Session: id, Payload: coinPayload{Username: username, Coins: balance}}); ok {
			_ = conn.TrySend(frame)
		}
	}

	h.viewerCountChanged(id)
	log.Info().Str("module", "app.hub").Str("session", string(id)).Str("conn", string(conn.ID())).Str("username", username).Msg("viewer selected session")
	return nil
}

// LeaveSession detaches a viewer from its room and roster.
func (h *Hub) LeaveSession(connID domain.ConnID) {
	id, ok := h.Rooms.Leave(connID)
	h.Store.RemoveViewer(connID)
	if ok {
		h.viewerCountChanged(id)
	}
}

// DropEventClient handles an event-channel disconnect.
func (h *Hub) DropEventClient(connID domain.ConnID) {
	id, inRoom := h.Rooms.Unregister(connID)
	h.Store.RemoveViewer(connID)
	if inRoom {
		h.viewerCountChanged(id)
	}
}

// EndSession marks the producer gone and notifies the room. Game state is
// retained; only liveness changes.
func (h *Hub) EndSession(id domain.SessionID) {
	h.Store.SetLive(id, false)
	h.publish(id, Event{Type: EvSessionEnded, Session: id})
	h.PublishSessionsList()
}

type coinPayload struct {
	Username string  `json:"username"`
	Coins    float64 `json:"coins"`
}

// PublishCoinUpdate sends a balance event to every connection the viewer
// holds in the session, and nobody else.
func (h *Hub) PublishCoinUpdate(id domain.SessionID, username string, balance float64) {
	frame, ok := marshalEvent(Event{Type: EvCoinUpdate, Session: id, Payload: coinPayload{Username: username, Coins: balance}})
	if !ok {
		return
	}
	for _, connID := range h.Store.PlayerConns(id, username) {
		_ = h.Rooms.Send(connID, frame)
	}
}

type queuePayload struct {
	Requests []domain.Request  `json:"requests"`
	Settings queueSettingsJSON `json:"settings"`
}

type queueSettingsJSON struct {
	VoteDurationSeconds int  `json:"voteDurationSeconds"`
	AutoExecute         bool `json:"autoExecute"`
}

// PublishQueueUpdate broadcasts the current queue to the session room.
func (h *Hub) PublishQueueUpdate(id domain.SessionID) {
	requests, settings, ok := h.Store.QueueSnapshot(id)
	if !ok {
		return
	}
	h.publish(id, Event{Type: EvQueueUpdate, Session: id, Payload: queuePayload{
		Requests: requests,
		Settings: queueSettingsJSON{
			VoteDurationSeconds: int(settings.VoteDuration.Seconds()),
			AutoExecute:         settings.AutoExecute,
		},
	}})
}

// PublishSessionsList broadcasts the public session list to every connected
// event client.
func (h *Hub) PublishSessionsList() {
	h.publishAll(Event{Type: EvSessionsList, Payload: h.Store.PublicSessions()})
}

func (h *Hub) viewerCountChanged(id domain.SessionID) {
	count := h.Store.ViewerCount(id)
	h.publish(id, Event{Type: EvViewerCount, Session: id, Payload: map[string]int{"viewers": count}})
	h.PublishSessionsList()
	if h.Policy != nil {
		h.Policy.OnViewerCountChange(id, count)
	}
}

// MediaViewerCountChanged is the relay-side counterpart of the fallback
// hook; media subscriptions count toward the CDN threshold too.
func (h *Hub) MediaViewerCountChanged(id domain.SessionID) {
	if h.Policy != nil {
		h.Policy.OnViewerCountChange(id, h.Streams.ViewerCount(id))
	}
}
