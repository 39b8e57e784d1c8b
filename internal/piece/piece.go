package piece

import "fmt"

// Kind represents a piece kind, ordered from weakest to strongest.
type Kind int

const (
	Soldier Kind = iota
	Cannon
	Horse
	Chariot
	Elephant
	Advisor
	General
)

// String returns the string representation of a kind
func (k Kind) String() string {
	switch k {
	case Soldier:
		return "SOLDIER"
	case Cannon:
		return "CANNON"
	case Horse:
		return "HORSE"
	case Chariot:
		return "CHARIOT"
	case Elephant:
		return "ELEPHANT"
	case Advisor:
		return "ADVISOR"
	case General:
		return "GENERAL"
	default:
		return "?"
	}
}

// Color represents a piece color
type Color int

const (
	Black Color = iota
	Red
)

// String returns the string representation of a color
func (c Color) String() string {
	switch c {
	case Black:
		return "BLACK"
	case Red:
		return "RED"
	default:
		return "?"
	}
}

// Piece is an immutable piece value. Pieces compare by points and the point
// order is total: SOLDIER_BLACK=1 up to GENERAL_RED=14.
type Piece struct {
	Kind  Kind
	Color Color
}

// New creates a new piece
func New(kind Kind, color Color) Piece {
	return Piece{Kind: kind, Color: color}
}

// Points returns the point value of the piece. Every (kind, color) pair has a
// distinct value; red always outranks black within a kind.
func (p Piece) Points() int {
	points := 2*int(p.Kind) + 1
	if p.Color == Red {
		points++
	}
	return points
}

// String returns the string representation of a piece (e.g. "GENERAL_RED")
func (p Piece) String() string {
	return fmt.Sprintf("%s_%s", p.Kind, p.Color)
}

// GeneralRed is the single strongest piece in the deck.
var GeneralRed = Piece{Kind: General, Color: Red}

// Group identifies the straight group a kind belongs to: {GENERAL, ADVISOR,
// ELEPHANT} or {CHARIOT, HORSE, CANNON}. Soldiers belong to neither.
type Group int

const (
	NoGroup Group = iota
	PalaceGroup
	ArmyGroup
)

// Group returns the straight group for the piece's kind.
func (p Piece) Group() Group {
	switch p.Kind {
	case General, Advisor, Elephant:
		return PalaceGroup
	case Chariot, Horse, Cannon:
		return ArmyGroup
	default:
		return NoGroup
	}
}

// MarshalText implements encoding.TextMarshaler so pieces render as readable
// names in JSON payloads and logs.
func (p Piece) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Piece) UnmarshalText(text []byte) error {
	for kind := Soldier; kind <= General; kind++ {
		for _, color := range []Color{Black, Red} {
			candidate := Piece{Kind: kind, Color: color}
			if candidate.String() == string(text) {
				*p = candidate
				return nil
			}
		}
	}
	return fmt.Errorf("unknown piece: %q", text)
}
