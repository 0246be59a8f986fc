package core

import (
	"errors"

	"github.com/colonycast/hub/internal/domain"
)

// Frame is a raw binary payload (media chunk or marshaled event).
type Frame []byte

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrStreamKeyMismatch = errors.New("stream key mismatch")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRequestNotFound   = errors.New("request not found")
	ErrPasswordMismatch  = errors.New("interaction password mismatch")
	ErrBackpressure      = errors.New("backpressure")
	ErrConnClosed        = errors.New("connection closed")
)

// EventConn is a viewer's event channel endpoint.
// Owned by the adapter; the adapter must Close() it.
type EventConn interface {
	ID() domain.ConnID
	TrySend(Frame) error
	Close()
}

// MediaConn is a viewer's media subscription endpoint. Send must preserve
// call order per connection and never block the caller indefinitely; Buffered
// reports unsent bytes so the relay can decide to drop for this one viewer.
type MediaConn interface {
	ID() domain.ConnID
	Send(Frame) error
	Buffered() int
	Close()
}

// ProducerConn is the relay's handle on a producer socket. It only needs to
// be closable so a superseding producer can evict it.
type ProducerConn interface {
	Close()
}

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SentTo  int
	Dropped int
}
