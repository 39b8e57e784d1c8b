package ai

import (
	rand "math/rand/v2"

	"github.com/liaptui/liaptui/internal/piece"
)

// RedealContext carries the scores the redeal decision weighs.
type RedealContext struct {
	OwnScore       int
	OpponentScores []int
}

// AcceptRedeal decides whether a weak-handed bot accepts a redeal. Hopeless
// hands (nothing above 9 points) accept 80% of the time, low-total hands 60%,
// anything else 30%. A bot that is leading by ten or more points declines
// outright: doubling the stakes only helps the chasers.
func AcceptRedeal(hand []piece.Piece, ctx RedealContext, rng *rand.Rand) bool {
	if len(ctx.OpponentScores) > 0 {
		lead := ctx.OwnScore - ctx.OpponentScores[0]
		for _, score := range ctx.OpponentScores[1:] {
			if diff := ctx.OwnScore - score; diff < lead {
				lead = diff
			}
		}
		if lead >= 10 {
			return false
		}
	}

	var probability float64
	switch {
	case piece.MaxPoints(hand) <= 9:
		probability = 0.8
	case piece.TotalPoints(hand) < 60:
		probability = 0.6
	default:
		probability = 0.3
	}
	return rng.Float64() < probability
}
