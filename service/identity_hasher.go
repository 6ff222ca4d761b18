package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const identityKeyInfo = "surveydraw identity digest v%d"

// identityHasher derives a per-version key from the server secret and digests
// participant identifiers with HMAC-SHA256.
type identityHasher struct {
	key     []byte
	version int
}

// NewIdentityHasher creates a hasher bound to one secret version.
// Digests produced under different versions never compare equal.
func NewIdentityHasher(secret string, version int) (IdentityHasher, error) {
	if secret == "" {
		return nil, ErrEmptyHashInput
	}
	if version < 1 {
		return nil, fmt.Errorf("identity secret version must be >= 1, got %d", version)
	}

	key := make([]byte, sha256.Size)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(fmt.Sprintf(identityKeyInfo, version)))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive identity key: %w", err)
	}

	return &identityHasher{key: key, version: version}, nil
}

// Hash returns "v<version>:<hex hmac>" for the participant identifier
func (h *identityHasher) Hash(participantID string) (string, error) {
	if participantID == "" {
		return "", ErrEmptyHashInput
	}

	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(participantID))

	return fmt.Sprintf("v%d:%s", h.version, hex.EncodeToString(mac.Sum(nil))), nil
}
