package core

import (
	"sync"

	"github.com/colonycast/hub/internal/domain"
	"github.com/rs/zerolog/log"
)

// streamSession is the media-relay state of one session: at most one
// producer, any number of viewers, and the cached init segment a late joiner
// needs before it can decode anything. Lifecycle is independent from the
// game Session.
type streamSession struct {
	mu          sync.RWMutex
	producer    ProducerConn
	viewers     map[domain.ConnID]MediaConn
	initSegment []byte
}

// StreamRegistry owns all live stream sessions and implements the fan-out
// and backpressure policy of the media relay.
type StreamRegistry struct {
	mu      sync.RWMutex
	streams map[domain.SessionID]*streamSession

	// Viewers buffering more than this many unsent bytes have media
	// segments dropped; init segments are never dropped.
	Threshold int
}

const DefaultBackpressureBytes = 64 << 10

func NewStreamRegistry(threshold int) *StreamRegistry {
	if threshold <= 0 {
		threshold = DefaultBackpressureBytes
	}
	return &StreamRegistry{
		streams:   make(map[domain.SessionID]*streamSession),
		Threshold: threshold,
	}
}

func (r *StreamRegistry) getOrCreate(id domain.SessionID) *streamSession {
	r.mu.RLock()
	ss, ok := r.streams[id]
	r.mu.RUnlock()
	if ok {
		return ss
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ss, ok = r.streams[id]; ok {
		return ss
	}
	ss = &streamSession{viewers: make(map[domain.ConnID]MediaConn)}
	r.streams[id] = ss
	return ss
}

func (r *StreamRegistry) get(id domain.SessionID) (*streamSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ss, ok := r.streams[id]
	return ss, ok
}

// AttachProducer registers conn as the session's single producer. An existing
// producer is closed and replaced; the newer connection always wins. The
// cached init segment is cleared so stale codec parameters are never served
// under the new producer.
func (r *StreamRegistry) AttachProducer(id domain.SessionID, conn ProducerConn) (replaced bool) {
	ss := r.getOrCreate(id)
	ss.mu.Lock()
	old := ss.producer
	ss.producer = conn
	ss.initSegment = nil
	ss.mu.Unlock()
	if old != nil {
		log.Warn().Str("module", "core.stream").Str("session", string(id)).Msg("replacing existing producer")
		old.Close()
		return true
	}
	return false
}

// DetachProducer clears the producer reference if conn still owns it. The
// init segment is retained so a fast reconnect does not stall every viewer.
// With no viewers left the whole stream session is reclaimed.
func (r *StreamRegistry) DetachProducer(id domain.SessionID, conn ProducerConn) (reclaimed bool) {
	ss, ok := r.get(id)
	if !ok {
		return false
	}
	ss.mu.Lock()
	if ss.producer != conn {
		// A replacement producer took over; nothing to detach.
		ss.mu.Unlock()
		return false
	}
	ss.producer = nil
	empty := len(ss.viewers) == 0
	ss.mu.Unlock()
	if empty {
		r.reclaim(id)
		return true
	}
	return false
}

// AddViewer registers a viewer and, if an init segment is cached, delivers it
// before any broadcast can reach the new viewer. Registration and the init
// send happen under the session lock so a concurrent broadcast cannot
// interleave ahead of the cached segment.
func (r *StreamRegistry) AddViewer(id domain.SessionID, conn MediaConn) {
	ss := r.getOrCreate(id)
	ss.mu.Lock()
	if ss.initSegment != nil {
		if err := conn.Send(Frame(ss.initSegment)); err != nil {
			log.Error().Err(err).Str("module", "core.stream").Str("session", string(id)).Str("viewer", string(conn.ID())).Msg("init segment send failed")
		}
	}
	ss.viewers[conn.ID()] = conn
	ss.mu.Unlock()
}

// RemoveViewer drops a viewer; with no producer and no viewers left the
// stream session is reclaimed.
func (r *StreamRegistry) RemoveViewer(id domain.SessionID, connID domain.ConnID) (reclaimed bool) {
	ss, ok := r.get(id)
	if !ok {
		return false
	}
	ss.mu.Lock()
	delete(ss.viewers, connID)
	empty := len(ss.viewers) == 0 && ss.producer == nil
	ss.mu.Unlock()
	if empty {
		r.reclaim(id)
		return true
	}
	return false
}

func (r *StreamRegistry) reclaim(id domain.SessionID) {
	r.mu.Lock()
	delete(r.streams, id)
	r.mu.Unlock()
	log.Info().Str("module", "core.stream").Str("session", string(id)).Msg("stream session reclaimed")
}

// Broadcast classifies one producer chunk and fans it out to every viewer.
// Init segments replace the cache and are always delivered; media segments
// are silently dropped for viewers whose unsent buffer exceeds the threshold.
// A send error to one viewer never aborts the remaining sends.
func (r *StreamRegistry) Broadcast(id domain.SessionID, chunk []byte) PublishResult {
	ss, ok := r.get(id)
	if !ok {
		return PublishResult{}
	}
	kind := ClassifyChunk(chunk)

	ss.mu.Lock()
	if kind == ChunkInit {
		ss.initSegment = chunk
	}
	viewers := make([]MediaConn, 0, len(ss.viewers))
	for _, v := range ss.viewers {
		viewers = append(viewers, v)
	}
	ss.mu.Unlock()

	res := PublishResult{}
	for _, v := range viewers {
		if kind == ChunkMedia && v.Buffered() > r.Threshold {
			res.Dropped++
			continue
		}
		if err := v.Send(Frame(chunk)); err != nil {
			log.Debug().Err(err).Str("module", "core.stream").Str("session", string(id)).Str("viewer", string(v.ID())).Msg("send failed")
			res.Dropped++
			continue
		}
		res.SentTo++
	}
	return res
}

// InitSegment returns the cached init segment, or nil.
func (r *StreamRegistry) InitSegment(id domain.SessionID) []byte {
	ss, ok := r.get(id)
	if !ok {
		return nil
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.initSegment
}

// HasProducer reports whether a live producer is attached.
func (r *StreamRegistry) HasProducer(id domain.SessionID) bool {
	ss, ok := r.get(id)
	if !ok {
		return false
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.producer != nil
}

// ViewerCount reports the number of subscribed media viewers.
func (r *StreamRegistry) ViewerCount(id domain.SessionID) int {
	ss, ok := r.get(id)
	if !ok {
		return 0
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.viewers)
}
