package game

import "fmt"

// Phase is the discrete state of a game's lifecycle.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhasePreparation
	PhaseDeclaration
	PhaseTurn
	PhaseScoring
	PhaseGameOver
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "WAITING"
	case PhasePreparation:
		return "PREPARATION"
	case PhaseDeclaration:
		return "DECLARATION"
	case PhaseTurn:
		return "TURN"
	case PhaseScoring:
		return "SCORING"
	case PhaseGameOver:
		return "GAME_OVER"
	default:
		return "?"
	}
}

// MarshalText renders phases by name on the wire.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase from its wire name.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "WAITING":
		*p = PhaseWaiting
	case "PREPARATION":
		*p = PhasePreparation
	case "DECLARATION":
		*p = PhaseDeclaration
	case "TURN":
		*p = PhaseTurn
	case "SCORING":
		*p = PhaseScoring
	case "GAME_OVER":
		*p = PhaseGameOver
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// legalTransitions is the phase transition table. PREPARATION and TURN may
// re-enter themselves (accepted redeal, next turn).
var legalTransitions = map[Phase][]Phase{
	PhaseWaiting:     {PhasePreparation},
	PhasePreparation: {PhasePreparation, PhaseDeclaration},
	PhaseDeclaration: {PhaseTurn},
	PhaseTurn:        {PhaseTurn, PhaseScoring},
	PhaseScoring:     {PhasePreparation, PhaseGameOver},
	PhaseGameOver:    nil,
}

// CanTransition reports whether moving from one phase to another is legal.
func CanTransition(from, to Phase) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
