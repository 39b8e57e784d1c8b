// Package ai contains the pure decision functions used for bot-controlled
// seats: declaration choice, play choice and redeal acceptance. Functions take
// a hand plus context and return a decision; they never touch game state.
package ai

import (
	"github.com/liaptui/liaptui/internal/piece"
	"github.com/liaptui/liaptui/internal/rules"
)

// Combo is a playable combination found in a hand, expressed as indices into
// the hand so the caller can submit it directly.
type Combo struct {
	Indices []int
	Pieces  []piece.Piece
	Type    rules.PlayType
	Points  int
}

// Size returns the number of pieces in the combo.
func (c Combo) Size() int { return len(c.Indices) }

// enumerateCombos finds every valid combination of the given size in the hand.
// Hand size is at most 8, so exhaustive subset enumeration is cheap.
func enumerateCombos(hand []piece.Piece, size int) []Combo {
	var combos []Combo
	indices := make([]int, size)

	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == size {
			pieces := make([]piece.Piece, size)
			for i, idx := range indices {
				pieces[i] = hand[idx]
			}
			playType := rules.Classify(pieces)
			if playType == rules.Invalid {
				return
			}
			combos = append(combos, Combo{
				Indices: append([]int(nil), indices...),
				Pieces:  pieces,
				Type:    playType,
				Points:  rules.PlayPoints(pieces, playType),
			})
			return
		}
		for i := start; i <= len(hand)-(size-depth); i++ {
			indices[depth] = i
			walk(i+1, depth+1)
		}
	}

	if size >= 1 && size <= len(hand) {
		walk(0, 0)
	}
	return combos
}

// allCombos enumerates valid combinations across the given sizes.
func allCombos(hand []piece.Piece, minSize, maxSize int) []Combo {
	var combos []Combo
	for size := minSize; size <= maxSize && size <= len(hand); size++ {
		combos = append(combos, enumerateCombos(hand, size)...)
	}
	return combos
}
