package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	drawTokenPrefix   = "EAP"
	drawTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	drawTokenGroups   = 3
	drawTokenGroupLen = 4
	seedBytes         = 32

	// Largest multiple of the alphabet size that fits in a byte; bytes at or above
	// it are rejected so every symbol is equally likely.
	drawTokenByteLimit = 256 - 256%len(drawTokenAlphabet)
)

// tokenGenerator draws every random value from a single source
type tokenGenerator struct {
	source io.Reader
}

// NewTokenGenerator creates a generator backed by crypto/rand
func NewTokenGenerator() TokenGenerator {
	return &tokenGenerator{source: rand.Reader}
}

// NewTokenGeneratorWithSource creates a generator over an explicit source.
// Only tests should pass anything other than crypto/rand.Reader.
func NewTokenGeneratorWithSource(source io.Reader) TokenGenerator {
	return &tokenGenerator{source: source}
}

// NewDrawToken returns EAP-XXXX-XXXX-XXXX with 12 uniform symbols from A-Z0-9
func (g *tokenGenerator) NewDrawToken() (string, error) {
	symbols := make([]byte, 0, drawTokenGroups*drawTokenGroupLen)
	buf := make([]byte, 16)

	for len(symbols) < cap(symbols) {
		if _, err := io.ReadFull(g.source, buf); err != nil {
			return "", fmt.Errorf("failed to generate draw token: %w", err)
		}
		for _, b := range buf {
			if int(b) >= drawTokenByteLimit {
				continue
			}
			symbols = append(symbols, drawTokenAlphabet[int(b)%len(drawTokenAlphabet)])
			if len(symbols) == cap(symbols) {
				break
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(drawTokenPrefix)
	for i := 0; i < drawTokenGroups; i++ {
		sb.WriteByte('-')
		sb.Write(symbols[i*drawTokenGroupLen : (i+1)*drawTokenGroupLen])
	}

	return sb.String(), nil
}

// NewSeed returns 32 random bytes as 64 hex characters
func (g *tokenGenerator) NewSeed() (string, error) {
	b := make([]byte, seedBytes)
	if _, err := io.ReadFull(g.source, b); err != nil {
		return "", fmt.Errorf("failed to generate seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// RandomIndex returns a uniform integer in [0, n)
func (g *tokenGenerator) RandomIndex(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("random index bound must be positive, got %d", n)
	}

	idx, err := rand.Int(g.source, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random index: %w", err)
	}

	return int(idx.Int64()), nil
}

// NewAnonymizedRef returns a random UUID v4
func (g *tokenGenerator) NewAnonymizedRef() (string, error) {
	id, err := uuid.NewRandomFromReader(g.source)
	if err != nil {
		return "", fmt.Errorf("failed to generate anonymized ref: %w", err)
	}
	return id.String(), nil
}
