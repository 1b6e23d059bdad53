package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// canon produces the canonical form used for hashing: whitespace
// stripped, lowercased. Keeps hashes stable across "AB 123" vs "ab123".
func canon(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HashField returns the salted SHA-256 hex digest of an identity value,
// or "" for empty input. Only this digest is ever compared or stored.
func HashField(value, salt string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + "|" + canon(value)))
	return hex.EncodeToString(sum[:])
}

// MaskValue renders an identity value for reviewers, keeping only the
// last two characters visible.
func MaskValue(value string) string {
	const keepLast = 2
	v := canon(value)
	if v == "" {
		return ""
	}
	if len(v) <= keepLast {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-keepLast) + v[len(v)-keepLast:]
}
