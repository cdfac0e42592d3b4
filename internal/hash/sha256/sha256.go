// Package sha256 computes the content hashes archived snapshots are keyed by.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Hasher produces lowercase hex SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader streams r through the digest.
func (Hasher) HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
