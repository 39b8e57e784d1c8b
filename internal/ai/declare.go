package ai

import (
	"math"

	"github.com/liaptui/liaptui/internal/piece"
	"github.com/liaptui/liaptui/internal/rules"
)

// FieldStrength classifies the opponents' declarations so far in the round.
type FieldStrength int

const (
	FieldNormal FieldStrength = iota
	FieldWeak
	FieldStrong
)

// DeclareContext carries everything the declaration heuristic needs beyond
// the hand itself.
type DeclareContext struct {
	// Position in declaration order, 0..3. Position 0 is the round starter.
	Position int
	// PreviousDeclarations in declaration order, one per player who has
	// already declared.
	PreviousDeclarations []int
	// MustDeclareNonzero is set when the player has declared zero twice in a
	// row and is required to declare at least 1.
	MustDeclareNonzero bool
	// RedealMultiplier for the current round.
	RedealMultiplier int
}

// isLast reports whether this player declares fourth.
func (ctx DeclareContext) isLast() bool { return ctx.Position == 3 }

// forbidden returns the declaration value the last declarer may not choose
// (the one making the round total exactly 8), or -1 when unconstrained.
func (ctx DeclareContext) forbidden() int {
	if !ctx.isLast() {
		return -1
	}
	sum := 0
	for _, d := range ctx.PreviousDeclarations {
		sum += d
	}
	if remaining := 8 - sum; remaining >= 0 && remaining <= 8 {
		return remaining
	}
	return -1
}

// fieldStrength derives the field classification from previous declarations:
// average at most 1.0 is weak, at least 3.5 is strong, anything else (or no
// declarations yet) is normal.
func fieldStrength(previous []int) FieldStrength {
	if len(previous) == 0 {
		return FieldNormal
	}
	sum := 0
	for _, d := range previous {
		sum += d
	}
	avg := float64(sum) / float64(len(previous))
	switch {
	case avg <= 1.0:
		return FieldWeak
	case avg >= 3.5:
		return FieldStrong
	default:
		return FieldNormal
	}
}

// openerScore rates the hand's standalone opening power. Pieces worth 13+
// count 1.0 each; pieces worth 11-12 count 1.0/0.85/0.7 in weak/normal/strong
// fields.
func openerScore(hand []piece.Piece, field FieldStrength) float64 {
	premiumWeight := map[FieldStrength]float64{
		FieldWeak:   1.0,
		FieldNormal: 0.85,
		FieldStrong: 0.7,
	}[field]

	score := 0.0
	for _, p := range hand {
		switch {
		case p.Points() >= 13:
			score += 1.0
		case p.Points() >= 11:
			score += premiumWeight
		}
	}
	return score
}

// ChooseDeclaration picks the pile target a bot declares for the round. The
// result is always legal: within [0, 8], never the last declarer's forbidden
// value, and never 0 when the zero-streak rule applies.
func ChooseDeclaration(hand []piece.Piece, ctx DeclareContext) int {
	pileRoom := 8
	for _, d := range ctx.PreviousDeclarations {
		pileRoom -= d
	}
	if pileRoom < 0 {
		pileRoom = 0
	}

	field := fieldStrength(ctx.PreviousDeclarations)
	openers := openerScore(hand, field)
	hasReliableOpener := openers > 0
	hasGeneralRed := false
	for _, p := range hand {
		if p == piece.GeneralRed {
			hasGeneralRed = true
		}
	}

	// Strong combos only: anything at three-of-a-kind or above, or a pair
	// worth more than 12 points.
	var strong []Combo
	for _, combo := range allCombos(hand, 2, 6) {
		if combo.Type >= rules.ThreeOfAKind || (combo.Type == rules.Pair && combo.Points > 12) {
			strong = append(strong, combo)
		}
	}

	// A combo is viable if it fits the remaining pile room and the hand can
	// plausibly win the lead: the starter always can, as can hands with a
	// reliable opener or the red general. Otherwise viability depends on an
	// opponent having declared big (3+), which implies they will open with
	// combos we can ride on. In weak fields the red general alone unlocks
	// every combo.
	opponentComboChance := false
	for _, d := range ctx.PreviousDeclarations {
		if d >= 3 {
			opponentComboChance = true
		}
	}
	canLead := ctx.Position == 0 || hasReliableOpener || hasGeneralRed
	enableAll := hasGeneralRed && field == FieldWeak

	comboSizes := 0
	for _, combo := range strong {
		if combo.Size() > pileRoom && !enableAll {
			continue
		}
		if enableAll || canLead || opponentComboChance {
			comboSizes += combo.Size()
		}
	}

	score := float64(comboSizes) + math.Floor(openers)
	if score > float64(pileRoom) {
		score = float64(pileRoom)
	}
	if score < 0 {
		score = 0
	}

	// Holding the red general alongside other premium openers earns a bounded
	// bonus regardless of field strength.
	if hasGeneralRed {
		premiums := 0
		for _, p := range hand {
			if p.Points() >= 11 {
				premiums++
			}
		}
		switch {
		case premiums >= 4:
			score += 1.0
		case premiums == 3:
			score += 0.8
		case premiums == 2:
			score += 0.6
		}
	}

	value := int(math.Floor(score))

	// Cap extremes: a hand of nothing but heavy pieces still cannot win every
	// pile, and a hand of soldiers cannot win many.
	if piece.MaxPoints(hand) > 0 {
		allHeavy, allLight := true, true
		for _, p := range hand {
			if p.Points() < 8 {
				allHeavy = false
			}
			if p.Points() > 2 {
				allLight = false
			}
		}
		if allHeavy && value > 5 {
			value = 5
		}
		if allLight && value > 2 {
			value = 2
		}
	}

	if value > pileRoom {
		value = pileRoom
	}
	if value < 0 {
		value = 0
	}
	if value > 8 {
		value = 8
	}

	strongHand := hasReliableOpener || len(strong) > 0
	return legalizeDeclaration(value, ctx, strongHand)
}

// legalizeDeclaration nudges a candidate value onto the nearest legal one,
// honouring the zero-streak floor and the last declarer's forbidden value.
// When two legal values are equidistant, strong hands take the higher one.
func legalizeDeclaration(value int, ctx DeclareContext, strongHand bool) int {
	minValue := 0
	if ctx.MustDeclareNonzero {
		minValue = 1
	}
	forbidden := ctx.forbidden()

	legal := func(v int) bool {
		return v >= minValue && v <= 8 && v != forbidden
	}

	if value < minValue {
		value = minValue
	}
	if legal(value) {
		return value
	}

	for distance := 1; distance <= 8; distance++ {
		higher, lower := value+distance, value-distance
		if strongHand {
			if legal(higher) {
				return higher
			}
			if legal(lower) {
				return lower
			}
		} else {
			if legal(lower) {
				return lower
			}
			if legal(higher) {
				return higher
			}
		}
	}
	// Unreachable: at most one value in [0,8] is forbidden.
	return minValue
}
