package domain

import (
	"time"

	"github.com/google/uuid"
)

type RequestType string

const (
	RequestAction     RequestType = "action"
	RequestSuggestion RequestType = "suggestion"
)

type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

type Vote struct {
	Voter string   `json:"voter"`
	Type  VoteType `json:"type"`
}

// Request is one queued voter-submitted action or suggestion.
type Request struct {
	ID          string      `json:"id"`
	Type        RequestType `json:"type"`
	Action      string      `json:"action"`
	Data        string      `json:"data"`
	Cost        float64     `json:"cost"`
	SubmittedBy string      `json:"submittedBy"`
	SubmittedAt time.Time   `json:"submittedAt"`
	Votes       []Vote      `json:"votes"`
}

// NewRequest avoids raw literals in adapters and keeps construction obvious.
func NewRequest(typ RequestType, action, data string, cost float64, submittedBy string, now time.Time) *Request {
	return &Request{
		ID:          uuid.NewString(),
		Type:        typ,
		Action:      action,
		Data:        data,
		Cost:        cost,
		SubmittedBy: submittedBy,
		SubmittedAt: now,
	}
}

// NetVotes is upvotes minus downvotes.
func (r *Request) NetVotes() int {
	net := 0
	for _, v := range r.Votes {
		if v.Type == VoteDown {
			net--
		} else {
			net++
		}
	}
	return net
}

// QueueSettings controls the auto-processing window of a session's queue.
type QueueSettings struct {
	VoteDuration time.Duration `json:"-"`
	AutoExecute  bool          `json:"autoExecute"`
}

// Action is a dispatched request, waiting to be drained by the game mod.
type Action struct {
	Action       string    `json:"action"`
	Data         string    `json:"data"`
	Votes        int       `json:"votes"`
	SubmittedBy  string    `json:"submittedBy"`
	RequestID    string    `json:"requestId"`
	DispatchedAt time.Time `json:"dispatchedAt"`
}
