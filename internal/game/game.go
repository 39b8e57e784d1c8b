package game

import (
	"github.com/liaptui/liaptui/internal/piece"
	"github.com/liaptui/liaptui/internal/rules"
)

// playRecord is one play inside the current turn.
type playRecord struct {
	Seat   int
	Pieces []piece.Piece
	Type   rules.PlayType
	Points int
	Valid  bool
}

// Game is the aggregate for one room's match: four players, round state and
// the per-phase auxiliary fields. It is owned exclusively by its room and is
// only ever mutated by the state machine running in the room's consumer loop.
type Game struct {
	Players [4]*Player

	Phase            Phase
	RoundNumber      int
	RoundStarter     int
	TurnNumber       int
	RedealMultiplier int

	// PREPARATION: seats with weak hands and the subset yet to decide on a
	// redeal. starterOverride is set when a redeal accepter takes the lead.
	weakSeats       []int
	awaitingRedeal  map[int]bool
	starterOverride *int

	// DECLARATION: seat order starting at the round starter, and how many
	// players have declared.
	declarationOrder []int
	declarationPos   int

	// TURN
	turnStarter   int
	currentSeat   int
	requiredCount int
	currentPlays  []playRecord
	turnResolved  bool

	// lastTurnWinner seeds the next turn's starter and, at round end, the
	// next round's starter.
	lastTurnWinner int
}

// NewGame builds the aggregate for four seated players. The game starts in
// WAITING until the host triggers the first preparation.
func NewGame(players [4]*Player) *Game {
	return &Game{
		Players:          players,
		Phase:            PhaseWaiting,
		RoundNumber:      1,
		RedealMultiplier: 1,
		lastTurnWinner:   -1,
	}
}

// PlayerByID finds a seat by player id, or nil.
func (g *Game) PlayerByID(id string) *Player {
	for _, p := range g.Players {
		if p != nil && p.ID == id {
			return p
		}
	}
	return nil
}

// PublicPlayers returns the broadcast view of all four seats.
func (g *Game) PublicPlayers() []PublicPlayer {
	views := make([]PublicPlayer, 0, len(g.Players))
	for _, p := range g.Players {
		if p != nil {
			views = append(views, p.Public())
		}
	}
	return views
}

// Hands returns a private copy of every seat's hand, keyed by seat.
func (g *Game) Hands() map[int][]piece.Piece {
	hands := make(map[int][]piece.Piece, len(g.Players))
	for _, p := range g.Players {
		if p == nil {
			continue
		}
		hands[p.Seat] = append([]piece.Piece(nil), p.Hand...)
	}
	return hands
}

// handsEmpty reports whether every hand has been played out.
func (g *Game) handsEmpty() bool {
	for _, p := range g.Players {
		if p != nil && len(p.Hand) > 0 {
			return false
		}
	}
	return true
}

// generalRedSeat returns the seat holding GENERAL_RED. The deck contains
// exactly one, so this is total after a deal.
func (g *Game) generalRedSeat() int {
	for _, p := range g.Players {
		if p != nil && p.HasPiece(piece.GeneralRed) {
			return p.Seat
		}
	}
	return 0
}

// declaredSum totals the declarations made so far this round.
func (g *Game) declaredSum() int {
	sum := 0
	for _, p := range g.Players {
		if p != nil && p.HasDeclared {
			sum += p.Declared
		}
	}
	return sum
}

// Winner returns the highest-scoring player, used once the game is over.
func (g *Game) Winner() *Player {
	var best *Player
	for _, p := range g.Players {
		if p == nil {
			continue
		}
		if best == nil || p.Score > best.Score {
			best = p
		}
	}
	return best
}

// seatName is a small helper for phase data payloads.
func (g *Game) seatName(seat int) string {
	if seat < 0 || seat >= len(g.Players) || g.Players[seat] == nil {
		return ""
	}
	return g.Players[seat].Name
}
