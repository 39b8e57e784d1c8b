package rules

import "github.com/liaptui/liaptui/internal/piece"

// WinThreshold is the cumulative score at which the game ends after a round.
const WinThreshold = 50

// WeakHandLimit is the highest point value a weak hand may contain.
const WeakHandLimit = 9

// RoundScore computes a player's raw round score from their declared target
// and the piles they actually captured:
//
//	declared 0, captured 0   → +3
//	declared 0, captured > 0 → −captured
//	declared X, captured X   → X+5
//	otherwise                → −|declared − captured|
//
// The redeal multiplier is applied by the caller.
func RoundScore(declared, captured int) int {
	switch {
	case declared == 0 && captured == 0:
		return 3
	case declared == 0:
		return -captured
	case declared == captured:
		return declared + 5
	case declared > captured:
		return captured - declared
	default:
		return declared - captured
	}
}

// IsWeak reports whether a hand qualifies for a redeal: no piece worth more
// than WeakHandLimit points.
func IsWeak(hand []piece.Piece) bool {
	return piece.MaxPoints(hand) <= WeakHandLimit
}
