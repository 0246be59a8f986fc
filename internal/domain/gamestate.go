package domain

// GameState is the narrow view of the producer's JSON snapshot that the hub
// itself inspects. The full document is kept verbatim as a raw payload and
// passed through to viewers untouched.
type GameState struct {
	MapName   string         `json:"mapName"`
	Colonists []Colonist     `json:"colonists"`
	Adoptions []AdoptionPair `json:"adoptions"`
}

// Colonist is one roster entry, used only for adoption name-matching.
type Colonist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AdoptionPair is an explicit adoption event carried inside a state update.
type AdoptionPair struct {
	Username string `json:"username"`
	PawnID   string `json:"pawnId"`
	PawnName string `json:"name"`
}
