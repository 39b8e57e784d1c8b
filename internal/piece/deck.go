package piece

import rand "math/rand/v2"

// DeckSize is the fixed number of pieces in a Liap Tui deck.
const DeckSize = 32

// HandSize is the number of pieces dealt to each of the four players.
const HandSize = 8

// NewDeck returns the fixed 32-piece deck in canonical order: per color one
// GENERAL, two each of ADVISOR, ELEPHANT, CHARIOT, HORSE and CANNON, and five
// SOLDIERs.
func NewDeck() []Piece {
	deck := make([]Piece, 0, DeckSize)
	for _, color := range []Color{Red, Black} {
		deck = append(deck, Piece{Kind: General, Color: color})
		for _, kind := range []Kind{Advisor, Elephant, Chariot, Horse, Cannon} {
			deck = append(deck, Piece{Kind: kind, Color: color}, Piece{Kind: kind, Color: color})
		}
		for range 5 {
			deck = append(deck, Piece{Kind: Soldier, Color: color})
		}
	}
	return deck
}

// Shuffled returns a freshly shuffled deck using the provided random source.
func Shuffled(rng *rand.Rand) []Piece {
	deck := NewDeck()
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// Deal splits a full deck into four hands of eight pieces.
func Deal(deck []Piece) [4][]Piece {
	var hands [4][]Piece
	for seat := range 4 {
		hand := make([]Piece, HandSize)
		copy(hand, deck[seat*HandSize:(seat+1)*HandSize])
		hands[seat] = hand
	}
	return hands
}

// TotalPoints sums the point values of the given pieces.
func TotalPoints(pieces []Piece) int {
	total := 0
	for _, p := range pieces {
		total += p.Points()
	}
	return total
}

// MaxPoints returns the highest point value among the given pieces, or 0 for
// an empty slice.
func MaxPoints(pieces []Piece) int {
	maxPoints := 0
	for _, p := range pieces {
		if p.Points() > maxPoints {
			maxPoints = p.Points()
		}
	}
	return maxPoints
}
