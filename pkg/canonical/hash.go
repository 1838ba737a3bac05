// Package canonical provides the content-integrity hashing and ID-generation
// contract shared by every governance record. External audit systems re-verify
// these digests, so the serialization rules here are load-bearing and must not
// change: SHA-256 over the encoding/json form of the value, with struct fields
// in declaration order and map keys sorted lexicographically. A record that
// carries its own hash field blanks that field before summing.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Sum returns the hex-encoded SHA-256 digest of the canonical JSON
// serialization of v.
func Sum(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize for hashing: %w", err)
	}
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:]), nil
}

// MustSum is Sum for values known to marshal cleanly, such as the core's own
// record types. It panics on serialization failure.
func MustSum(v any) string {
	sum, err := Sum(v)
	if err != nil {
		panic(err)
	}
	return sum
}

// IDFunc produces opaque unique identifiers for governance records.
type IDFunc func() string

// NewID is the default IDFunc (UUID v4).
func NewID() string {
	return uuid.NewString()
}
