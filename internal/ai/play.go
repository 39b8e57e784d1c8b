package ai

import (
	"sort"

	"github.com/liaptui/liaptui/internal/piece"
)

// ChoosePlay selects the pieces a bot plays this turn, returned as indices
// into the hand.
//
// The starter (requiredCount == 0) may lead with any valid combination of one
// to six pieces; followers must match the starter's piece count. In both
// cases the highest-scoring valid combination is chosen. A follower with no
// valid combination of the required size must still play, so it discards its
// lowest-value pieces.
func ChoosePlay(hand []piece.Piece, requiredCount int) []int {
	if len(hand) == 0 {
		return nil
	}

	var candidates []Combo
	if requiredCount <= 0 {
		candidates = allCombos(hand, 1, 6)
	} else {
		candidates = enumerateCombos(hand, requiredCount)
	}

	if len(candidates) == 0 {
		return discardLowest(hand, requiredCount)
	}

	best := candidates[0]
	for _, combo := range candidates[1:] {
		if combo.Points > best.Points ||
			(combo.Points == best.Points && combo.Size() > best.Size()) {
			best = combo
		}
	}
	return best.Indices
}

// discardLowest picks the count cheapest pieces, by points then hand order.
func discardLowest(hand []piece.Piece, count int) []int {
	if count > len(hand) {
		count = len(hand)
	}
	indices := make([]int, len(hand))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return hand[indices[a]].Points() < hand[indices[b]].Points()
	})
	picked := append([]int(nil), indices[:count]...)
	sort.Ints(picked)
	return picked
}
