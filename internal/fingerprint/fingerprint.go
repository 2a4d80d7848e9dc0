// Package fingerprint derives the deterministic digest used as the join
// key across the shared cache and permanent memory tiers.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize lowercases the question, trims surrounding whitespace, and
// collapses internal whitespace runs to a single space. Two questions
// that normalize identically always share a fingerprint.
func Normalize(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// Of returns the hex-encoded SHA-256 digest of the normalized question.
func Of(question string) string {
	sum := sha256.Sum256([]byte(Normalize(question)))
	return hex.EncodeToString(sum[:])
}
