package rules

import "github.com/liaptui/liaptui/internal/piece"

// CompareResult is the outcome of comparing two plays.
type CompareResult int

const (
	// AWins: a beats b on type priority or point total.
	AWins CompareResult = iota
	// BWins: b beats a on type priority or point total.
	BWins
	// AWinsOnOrder: the plays tie exactly; the earlier play (a) wins.
	AWinsOnOrder
)

// Compare ranks two plays. Higher type priority wins; within a type the
// higher point total wins, where extended straights count only their three
// highest-valued distinct kinds. Exact ties go to a, the earlier play.
func Compare(a, b []piece.Piece) CompareResult {
	typeA, typeB := Classify(a), Classify(b)
	if typeA != typeB {
		if typeA > typeB {
			return AWins
		}
		return BWins
	}

	pointsA, pointsB := PlayPoints(a, typeA), PlayPoints(b, typeB)
	switch {
	case pointsA > pointsB:
		return AWins
	case pointsB > pointsA:
		return BWins
	default:
		return AWinsOnOrder
	}
}

// PlayPoints returns the point total used to rank a play of the given type.
// For EXTENDED_STRAIGHT and EXTENDED_STRAIGHT_5 the duplicated kinds count
// once: only the three highest-valued distinct kinds are summed.
func PlayPoints(pieces []piece.Piece, playType PlayType) int {
	if playType == ExtendedStraight || playType == ExtendedStraight5 {
		best := make(map[piece.Kind]int, 3)
		for _, p := range pieces {
			if p.Points() > best[p.Kind] {
				best[p.Kind] = p.Points()
			}
		}
		total := 0
		for _, points := range best {
			total += points
		}
		return total
	}
	return piece.TotalPoints(pieces)
}
