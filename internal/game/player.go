package game

import "github.com/liaptui/liaptui/internal/piece"

// Player is one of the four seats in a game. Mutation happens only inside the
// room's consumer loop, so the struct carries no locking.
type Player struct {
	ID            string
	Name          string
	Seat          int
	IsBot         bool
	Connected     bool
	OriginalIsBot bool

	Score int

	// Per-round state, reset when a new round is prepared.
	Hand          []piece.Piece
	Declared      int
	HasDeclared   bool
	CapturedPiles int

	// ZeroStreak counts consecutive rounds declaring zero. At 2 or more the
	// player must declare at least 1.
	ZeroStreak int
}

// MustDeclareNonzero reports whether the zero-streak rule binds this player.
func (p *Player) MustDeclareNonzero() bool {
	return p.ZeroStreak >= 2
}

// HasPiece reports whether the hand contains the given piece.
func (p *Player) HasPiece(target piece.Piece) bool {
	for _, held := range p.Hand {
		if held == target {
			return true
		}
	}
	return false
}

// removeHandPieces removes the pieces at the given indices from the hand and
// returns them in index order. Indices must be valid and unique; validation
// happens before calling.
func (p *Player) removeHandPieces(indices []int) []piece.Piece {
	taken := make([]piece.Piece, 0, len(indices))
	keep := make([]piece.Piece, 0, len(p.Hand)-len(indices))

	drop := make(map[int]bool, len(indices))
	for _, idx := range indices {
		drop[idx] = true
	}
	for i, held := range p.Hand {
		if drop[i] {
			taken = append(taken, held)
		} else {
			keep = append(keep, held)
		}
	}
	p.Hand = keep
	return taken
}

// PublicPlayer is the per-seat view embedded in broadcasts. Hands are never
// included here; each player's own hand travels as private data.
type PublicPlayer struct {
	Name          string `json:"name"`
	Seat          int    `json:"seat"`
	IsBot         bool   `json:"is_bot"`
	Connected     bool   `json:"connected"`
	Score         int    `json:"score"`
	HandCount     int    `json:"hand_count"`
	Declared      *int   `json:"declared,omitempty"`
	CapturedPiles int    `json:"captured_piles"`
	ZeroStreak    int    `json:"zero_streak"`
}

// Public returns the broadcast-safe view of the player.
func (p *Player) Public() PublicPlayer {
	view := PublicPlayer{
		Name:          p.Name,
		Seat:          p.Seat,
		IsBot:         p.IsBot,
		Connected:     p.Connected,
		Score:         p.Score,
		HandCount:     len(p.Hand),
		CapturedPiles: p.CapturedPiles,
		ZeroStreak:    p.ZeroStreak,
	}
	if p.HasDeclared {
		declared := p.Declared
		view.Declared = &declared
	}
	return view
}
