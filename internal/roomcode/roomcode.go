// Package roomcode draws candidate room codes from a restricted alphabet.
// Candidates carry no uniqueness guarantee; the storage layer's uniqueness
// constraint arbitrates collisions where writes are serialized.
package roomcode

import (
	"github.com/lmartell/cipherduel/internal/dependencies/random"
	"github.com/lmartell/cipherduel/internal/model"
)

const (
	// CodeLength is the length of generated room codes
	CodeLength = 6
	// Alphabet is the characters used in room codes (avoid confusing chars
	// like 0/O and 1/I)
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Generator produces candidate room codes
type Generator struct {
	random random.Random
}

// NewGenerator creates a Generator backed by the given randomness source
func NewGenerator(rnd random.Random) *Generator {
	return &Generator{random: rnd}
}

// Candidate draws a fresh candidate code
func (g *Generator) Candidate() model.RoomCode {
	return model.RoomCode(g.random.String(CodeLength, Alphabet))
}
