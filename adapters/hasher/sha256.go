package hasher

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/unclepete-20/chatbot-test/domain"
)

// New returns a domain.Hasher backed by SHA-256.
func New() domain.Hasher { return sha256Hasher{} }

type sha256Hasher struct{}

func (sha256Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Short returns the first 12 hex characters of h's digest of data, enough to
// tell instruction sets apart in logs.
func Short(h domain.Hasher, data []byte) string {
	full := h.Hash(data)
	if len(full) > 12 {
		return full[:12]
	}
	return full
}
