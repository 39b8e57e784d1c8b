// Package roomcode generates the short join codes players type to enter a
// room. Codes use Crockford's base32 alphabet, which avoids the easily
// confused letters.
package roomcode

import (
	"crypto/rand"
	"strings"
)

const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Length is the number of characters in a room code.
const Length = 6

// RandSource interface for dependency injection of randomness
type RandSource interface {
	Intn(n int) int
}

// Generator produces room codes with configurable randomness.
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a generator. A nil RandSource means crypto/rand.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate creates a room code using crypto/rand.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate creates a new room code using the generator's RandSource.
func (g *Generator) Generate() string {
	code := make([]byte, Length)
	if g.randSource != nil {
		for i := range code {
			code[i] = alphabet[g.randSource.Intn(len(alphabet))]
		}
		return string(code)
	}

	raw := make([]byte, Length)
	if _, err := rand.Read(raw); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
	for i, b := range raw {
		code[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(code)
}

// Normalize maps user input onto the canonical code form: uppercase, with the
// ambiguous characters folded onto their Crockford equivalents.
func Normalize(input string) string {
	var out strings.Builder
	out.Grow(len(input))
	for _, r := range strings.ToUpper(strings.TrimSpace(input)) {
		switch r {
		case 'O':
			out.WriteRune('0')
		case 'I', 'L':
			out.WriteRune('1')
		case '-', ' ':
			// Separators are tolerated and dropped.
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

// Valid reports whether a normalized code is well formed.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
