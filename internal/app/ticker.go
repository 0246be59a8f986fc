package app

import (
	"context"
	"time"

	"github.com/colonycast/hub/internal/domain"
	"github.com/rs/zerolog/log"
)

// Ticker drives the two background loops: coin accrual and queue
// auto-processing. Both iterate the full session collection each tick and
// isolate failures per session so one stuck session never stalls the rest.
type Ticker struct {
	Hub              *Hub
	EconomyInterval  time.Duration
	QueueInterval    time.Duration
	SessionsInterval time.Duration
}

func NewTicker(hub *Hub, economy, queue, sessions time.Duration) *Ticker {
	if economy <= 0 {
		economy = 10 * time.Second
	}
	if queue <= 0 {
		queue = time.Second
	}
	if sessions <= 0 {
		sessions = 30 * time.Second
	}
	return &Ticker{Hub: hub, EconomyInterval: economy, QueueInterval: queue, SessionsInterval: sessions}
}

// Run blocks until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	economy := time.NewTicker(t.EconomyInterval)
	queue := time.NewTicker(t.QueueInterval)
	sessions := time.NewTicker(t.SessionsInterval)
	defer economy.Stop()
	defer queue.Stop()
	defer sessions.Stop()

	log.Info().Str("module", "app.ticker").Dur("economy", t.EconomyInterval).Dur("queue", t.QueueInterval).Msg("tick loops started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.ticker").Msg("tick loops stopped")
			return
		case <-economy.C:
			t.EconomyTick()
		case <-queue.C:
			t.QueueTick()
		case <-sessions.C:
			t.Hub.PublishSessionsList()
		}
	}
}

// EconomyTick accrues coins for every viewer present in every session room.
// A zero or negative coinRate accrues nothing.
func (t *Ticker) EconomyTick() {
	perMinute := t.EconomyInterval.Minutes()
	for _, id := range t.Hub.Store.SessionIDs() {
		t.guard(id, "economy", func(id domain.SessionID) {
			rate := t.Hub.Store.CoinRate(id)
			if rate <= 0 {
				return
			}
			accrual := rate * perMinute
			for _, username := range t.Hub.Store.ActiveViewers(id) {
				balance, err := t.Hub.Store.CreditViewer(id, username, accrual)
				if err != nil {
					continue
				}
				t.Hub.PublishCoinUpdate(id, username, balance)
			}
		})
	}
}

// QueueTick runs one auto-processing cycle over every session's queue.
func (t *Ticker) QueueTick() {
	for _, id := range t.Hub.Store.SessionIDs() {
		t.guard(id, "queue", func(id domain.SessionID) {
			_, processed, err := t.Hub.Store.ProcessQueue(id, false)
			if err != nil || !processed {
				return
			}
			t.Hub.PublishQueueUpdate(id)
		})
	}
}

// guard wraps one session's tick work so a panic is contained to that
// session and the loop keeps going.
func (t *Ticker) guard(id domain.SessionID, loop string, fn func(domain.SessionID)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "app.ticker").Str("loop", loop).Str("session", string(id)).Any("panic", r).Msg("tick recovered")
		}
	}()
	fn(id)
}
