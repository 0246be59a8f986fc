// Package domain contains entities without logic, just meta-data.
package domain

import "time"

type (
	// SessionID is the externally supplied key of a game session.
	SessionID string
	// ConnID identifies one client connection (cookie client token).
	ConnID string
)

// Session is the per-game-instance metadata. Collections hanging off a
// session (economy ledger, queue, adoptions, roster) live in the store,
// which guards them with the session lock.
type Session struct {
	ID                  SessionID
	StreamKey           string
	IsPublic            bool
	InteractionPassword string
	Live                bool
	CreatedAt           time.Time
	LastUpdate          time.Time
	LastHeartbeat       time.Time
}

// ViewerLedger is one viewer's economy entry within a session.
type ViewerLedger struct {
	Coins      float64   `json:"coins"`
	WatchStart time.Time `json:"watchStart"`
	LastSeen   time.Time `json:"lastSeen"`
}

// Economy holds the per-session accrual and pricing configuration.
type Economy struct {
	CoinRate    float64            `json:"coinRate"` // coins per minute
	ActionCosts map[string]float64 `json:"actionCosts"`
}

// Adoption links a viewer identity to an in-game pawn.
type Adoption struct {
	Username  string    `json:"username"`
	PawnID    string    `json:"pawnId"`
	PawnName  string    `json:"name"`
	AdoptedAt time.Time `json:"adoptedAt"`
}

// SessionSummary is the read model broadcast in the public sessions list.
type SessionSummary struct {
	ID          SessionID `json:"id"`
	MapName     string    `json:"mapName,omitempty"`
	Live        bool      `json:"live"`
	ViewerCount int       `json:"viewerCount"`
	LastUpdate  time.Time `json:"lastUpdate"`
}
