// Package visitor turns a caller's network address into an anonymous, stable
// identifier for join records. Raw IPs are never stored.
package visitor

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hasher computes keyed BLAKE2b digests. The key keeps hashes from being
// reversed by enumerating the IPv4 space.
type Hasher struct {
	key []byte
}

// New returns a Hasher for key. Keys longer than blake2b allows are compressed first.
func New(key []byte) *Hasher {
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}
}

// Hash returns a 32-char hex digest of addr, or "" for an empty address.
func (h *Hasher) Hash(addr string) string {
	if h == nil || addr == "" {
		return ""
	}
	d, err := blake2b.New(16, h.key)
	if err != nil {
		// Only reachable with an oversized key, which New prevents.
		return ""
	}
	d.Write([]byte(addr))
	return hex.EncodeToString(d.Sum(nil))
}
