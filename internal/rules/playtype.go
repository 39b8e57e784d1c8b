// Package rules implements the Liap Tui rule engine: play classification,
// play comparison, round scoring and the weak-hand check. Everything here is
// pure and deterministic; game state lives elsewhere.
package rules

import "github.com/liaptui/liaptui/internal/piece"

// PlayType classifies a set of pieces played together. The numeric value is
// the play's priority: when two plays have different types the higher value
// wins outright.
type PlayType int

const (
	Invalid PlayType = iota
	Single
	Pair
	ThreeOfAKind
	Straight
	FourOfAKind
	ExtendedStraight
	ExtendedStraight5
	FiveOfAKind
	DoubleStraight
)

// String returns the string representation of the play type
func (t PlayType) String() string {
	switch t {
	case Single:
		return "SINGLE"
	case Pair:
		return "PAIR"
	case ThreeOfAKind:
		return "THREE_OF_A_KIND"
	case Straight:
		return "STRAIGHT"
	case FourOfAKind:
		return "FOUR_OF_A_KIND"
	case ExtendedStraight:
		return "EXTENDED_STRAIGHT"
	case ExtendedStraight5:
		return "EXTENDED_STRAIGHT_5"
	case FiveOfAKind:
		return "FIVE_OF_A_KIND"
	case DoubleStraight:
		return "DOUBLE_STRAIGHT"
	default:
		return "INVALID"
	}
}

// Classify determines the play type of a piece combination. It is total: any
// input maps to a type or Invalid.
func Classify(pieces []piece.Piece) PlayType {
	switch len(pieces) {
	case 1:
		return Single
	case 2:
		if pieces[0] == pieces[1] {
			return Pair
		}
	case 3:
		if allSoldiers(pieces) && sameColor(pieces) {
			return ThreeOfAKind
		}
		if isStraight(pieces, 3) {
			return Straight
		}
	case 4:
		if allSoldiers(pieces) && sameColor(pieces) {
			return FourOfAKind
		}
		if isStraight(pieces, 3) {
			return ExtendedStraight
		}
	case 5:
		if allSoldiers(pieces) && sameColor(pieces) {
			return FiveOfAKind
		}
		if isStraight(pieces, 3) {
			return ExtendedStraight5
		}
	case 6:
		if isDoubleStraight(pieces) {
			return DoubleStraight
		}
	}
	return Invalid
}

func sameColor(pieces []piece.Piece) bool {
	for _, p := range pieces[1:] {
		if p.Color != pieces[0].Color {
			return false
		}
	}
	return true
}

func allSoldiers(pieces []piece.Piece) bool {
	for _, p := range pieces {
		if p.Kind != piece.Soldier {
			return false
		}
	}
	return true
}

// isStraight reports whether the pieces are all one color, all from a single
// straight group, and span exactly distinctKinds kinds. With three pieces that
// is a plain straight; with four it means exactly one kind is duplicated, with
// five exactly two are.
func isStraight(pieces []piece.Piece, distinctKinds int) bool {
	if !sameColor(pieces) {
		return false
	}
	group := pieces[0].Group()
	if group == piece.NoGroup {
		return false
	}
	kinds := make(map[piece.Kind]struct{}, distinctKinds)
	for _, p := range pieces {
		if p.Group() != group {
			return false
		}
		kinds[p.Kind] = struct{}{}
	}
	return len(kinds) == distinctKinds
}

// isDoubleStraight checks for exactly two each of CHARIOT, HORSE and CANNON in
// one color.
func isDoubleStraight(pieces []piece.Piece) bool {
	if !sameColor(pieces) {
		return false
	}
	counts := make(map[piece.Kind]int, 3)
	for _, p := range pieces {
		counts[p.Kind]++
	}
	return counts[piece.Chariot] == 2 && counts[piece.Horse] == 2 && counts[piece.Cannon] == 2
}
