package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jaevor/go-nanoid"
)

// TokenGenerator produces URL-safe random tokens from crypto/rand.
type TokenGenerator struct {
	generate func() string
}

func NewTokenGenerator(length int) (*TokenGenerator, error) {
	generateID, err := nanoid.Standard(length)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}
	return &TokenGenerator{generate: generateID}, nil
}

func (g *TokenGenerator) New() string {
	return g.generate()
}

// HashToken is the lookup key stored in place of a raw session or reset token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
