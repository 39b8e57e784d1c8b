package rules

import (
	"testing"

	"github.com/liaptui/liaptui/internal/piece"
	"github.com/stretchr/testify/assert"
)

func pc(kind piece.Kind, color piece.Color) piece.Piece {
	return piece.Piece{Kind: kind, Color: color}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		pieces []piece.Piece
		want   PlayType
	}{
		{"single", []piece.Piece{pc(piece.Horse, piece.Red)}, Single},
		{"pair same kind and color", []piece.Piece{pc(piece.Chariot, piece.Black), pc(piece.Chariot, piece.Black)}, Pair},
		{"pair wrong color", []piece.Piece{pc(piece.Chariot, piece.Black), pc(piece.Chariot, piece.Red)}, Invalid},
		{"three soldiers", []piece.Piece{pc(piece.Soldier, piece.Red), pc(piece.Soldier, piece.Red), pc(piece.Soldier, piece.Red)}, ThreeOfAKind},
		{"three soldiers mixed color", []piece.Piece{pc(piece.Soldier, piece.Red), pc(piece.Soldier, piece.Red), pc(piece.Soldier, piece.Black)}, Invalid},
		{"army straight", []piece.Piece{pc(piece.Chariot, piece.Black), pc(piece.Horse, piece.Black), pc(piece.Cannon, piece.Black)}, Straight},
		{"palace straight", []piece.Piece{pc(piece.General, piece.Red), pc(piece.Advisor, piece.Red), pc(piece.Elephant, piece.Red)}, Straight},
		{"straight across groups", []piece.Piece{pc(piece.General, piece.Red), pc(piece.Advisor, piece.Red), pc(piece.Cannon, piece.Red)}, Invalid},
		{"four soldiers", []piece.Piece{pc(piece.Soldier, piece.Black), pc(piece.Soldier, piece.Black), pc(piece.Soldier, piece.Black), pc(piece.Soldier, piece.Black)}, FourOfAKind},
		{"extended straight", []piece.Piece{pc(piece.Chariot, piece.Black), pc(piece.Chariot, piece.Black), pc(piece.Horse, piece.Black), pc(piece.Cannon, piece.Black)}, ExtendedStraight},
		{"four same group two kinds", []piece.Piece{pc(piece.Chariot, piece.Black), pc(piece.Chariot, piece.Black), pc(piece.Horse, piece.Black), pc(piece.Horse, piece.Black)}, Invalid},
		{"extended straight of five", []piece.Piece{pc(piece.Chariot, piece.Red), pc(piece.Chariot, piece.Red), pc(piece.Horse, piece.Red), pc(piece.Horse, piece.Red), pc(piece.Cannon, piece.Red)}, ExtendedStraight5},
		{"five soldiers", []piece.Piece{pc(piece.Soldier, piece.Red), pc(piece.Soldier, piece.Red), pc(piece.Soldier, piece.Red), pc(piece.Soldier, piece.Red), pc(piece.Soldier, piece.Red)}, FiveOfAKind},
		{"double straight", []piece.Piece{
			pc(piece.Chariot, piece.Black), pc(piece.Chariot, piece.Black),
			pc(piece.Horse, piece.Black), pc(piece.Horse, piece.Black),
			pc(piece.Cannon, piece.Black), pc(piece.Cannon, piece.Black),
		}, DoubleStraight},
		{"double straight mixed colors", []piece.Piece{
			pc(piece.Chariot, piece.Black), pc(piece.Chariot, piece.Red),
			pc(piece.Horse, piece.Black), pc(piece.Horse, piece.Black),
			pc(piece.Cannon, piece.Black), pc(piece.Cannon, piece.Black),
		}, Invalid},
		{"empty", nil, Invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.pieces))
		})
	}
}

func TestTypePriorityOrdering(t *testing.T) {
	// The numeric ordering of the constants is the rule-book priority.
	ordered := []PlayType{Single, Pair, ThreeOfAKind, Straight, FourOfAKind,
		ExtendedStraight, ExtendedStraight5, FiveOfAKind, DoubleStraight}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, int(ordered[i]), int(ordered[i-1]))
	}
}

func TestCompareTieGoesToEarlierPlay(t *testing.T) {
	// Two black chariots as singles: same type, same points, earlier play wins.
	a := []piece.Piece{pc(piece.Chariot, piece.Black)}
	b := []piece.Piece{pc(piece.Chariot, piece.Black)}
	assert.Equal(t, AWinsOnOrder, Compare(a, b))
}

func TestCompareExtendedStraightTopThreeKinds(t *testing.T) {
	// Black: distinct kinds sum 7+5+3 = 15. Red: 8+6+4 = 18. Red wins even
	// though it duplicates its cheapest kind.
	black := []piece.Piece{pc(piece.Chariot, piece.Black), pc(piece.Chariot, piece.Black), pc(piece.Horse, piece.Black), pc(piece.Cannon, piece.Black)}
	red := []piece.Piece{pc(piece.Chariot, piece.Red), pc(piece.Horse, piece.Red), pc(piece.Cannon, piece.Red), pc(piece.Cannon, piece.Red)}

	assert.Equal(t, 15, PlayPoints(black, ExtendedStraight))
	assert.Equal(t, 18, PlayPoints(red, ExtendedStraight))
	assert.Equal(t, BWins, Compare(black, red))
}

func TestCompareTypePriorityBeatsPoints(t *testing.T) {
	pair := []piece.Piece{pc(piece.Advisor, piece.Red), pc(piece.Advisor, piece.Red)}
	triple := []piece.Piece{pc(piece.Soldier, piece.Black), pc(piece.Soldier, piece.Black), pc(piece.Soldier, piece.Black)}
	assert.Equal(t, BWins, Compare(pair, triple))
}

func TestRoundScore(t *testing.T) {
	tests := []struct {
		declared, captured, want int
	}{
		{0, 0, 3},
		{0, 2, -2},
		{3, 3, 8},
		{5, 3, -2},
		{2, 4, -2},
		{8, 8, 13},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundScore(tt.declared, tt.captured),
			"declared=%d captured=%d", tt.declared, tt.captured)
	}
}

func TestRoundScoreWithMultiplier(t *testing.T) {
	// Multiplier is applied by the caller; verify the documented examples.
	assert.Equal(t, 16, RoundScore(3, 3)*2)
	assert.Equal(t, -4, RoundScore(0, 2)*2)
	assert.Equal(t, -2, RoundScore(5, 3)*1)
}

func TestIsWeak(t *testing.T) {
	weak := []piece.Piece{pc(piece.Elephant, piece.Black), pc(piece.Chariot, piece.Black), pc(piece.Soldier, piece.Red)}
	assert.True(t, IsWeak(weak))

	strong := append([]piece.Piece{pc(piece.Elephant, piece.Red)}, weak...)
	assert.False(t, IsWeak(strong))
}

// Every valid combination should admit a same-sized play that loses to it.
func TestEveryValidPlayHasALoser(t *testing.T) {
	winners := [][]piece.Piece{
		{pc(piece.General, piece.Red)},
		{pc(piece.Chariot, piece.Red), pc(piece.Chariot, piece.Red)},
		{pc(piece.Soldier, piece.Red), pc(piece.Soldier, piece.Red), pc(piece.Soldier, piece.Red)},
		{pc(piece.Chariot, piece.Red), pc(piece.Horse, piece.Red), pc(piece.Cannon, piece.Red)},
		{pc(piece.Chariot, piece.Red), pc(piece.Chariot, piece.Red), pc(piece.Horse, piece.Red), pc(piece.Cannon, piece.Red)},
		{pc(piece.Chariot, piece.Red), pc(piece.Chariot, piece.Red), pc(piece.Horse, piece.Red), pc(piece.Horse, piece.Red), pc(piece.Cannon, piece.Red)},
	}
	losers := [][]piece.Piece{
		{pc(piece.Soldier, piece.Black)},
		{pc(piece.Cannon, piece.Black), pc(piece.Cannon, piece.Black)},
		{pc(piece.Soldier, piece.Black), pc(piece.Soldier, piece.Black), pc(piece.Soldier, piece.Black)},
		{pc(piece.Chariot, piece.Black), pc(piece.Horse, piece.Black), pc(piece.Cannon, piece.Black)},
		{pc(piece.Chariot, piece.Black), pc(piece.Chariot, piece.Black), pc(piece.Horse, piece.Black), pc(piece.Cannon, piece.Black)},
		{pc(piece.Chariot, piece.Black), pc(piece.Chariot, piece.Black), pc(piece.Horse, piece.Black), pc(piece.Horse, piece.Black), pc(piece.Cannon, piece.Black)},
	}

	for i, winner := range winners {
		loser := losers[i]
		assert.Len(t, loser, len(winner))
		assert.NotEqual(t, Invalid, Classify(winner))
		assert.NotEqual(t, Invalid, Classify(loser))
		assert.Equal(t, AWins, Compare(winner, loser))
	}
}
