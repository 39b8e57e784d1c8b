package roomcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRand struct {
	values []int
	pos    int
}

func (f *fixedRand) Intn(n int) int {
	v := f.values[f.pos%len(f.values)] % n
	f.pos++
	return v
}

func TestGenerateIsValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := Generate()
		require.Len(t, code, Length)
		assert.True(t, Valid(code), "code %q", code)
	}
}

func TestGenerateWithRandSource(t *testing.T) {
	gen := NewGenerator(&fixedRand{values: []int{0, 1, 2, 3, 4, 5}})
	assert.Equal(t, "012345", gen.Generate())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"abc123", "ABC123"},
		{" abc123 ", "ABC123"},
		{"abo-i23", "AB0123"},
		{"XYZ L89", "XYZ189"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.input), "input %q", tt.input)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("ABC123"))
	assert.False(t, Valid("ABC12"), "too short")
	assert.False(t, Valid("ABC12I"), "excluded letter")
	assert.False(t, Valid("abc123"), "lowercase is not canonical")
}
