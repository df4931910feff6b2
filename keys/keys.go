// Package keys builds every cache key the API reads or invalidates. Adding a
// derived key here is half of the job; the other half is mapping it in
// invalidate.DefaultRegistry.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	Verified      = "verified"
	AllowedTokens = "allowedTokens"
	StaffPicks    = "staff-picks"
)

func Poll(id string) string              { return "poll:" + id }
func Preference(profileID string) string { return "preference:" + profileID }
func Profile(profileID string) string    { return "profile:" + profileID }

// Namespace returns the part of key before the first ':' for use as a
// low-cardinality label. Process-wide keys are their own namespace.
func Namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// Digest returns a short stable hash of key for logs that must not carry
// profile ids or addresses.
func Digest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}
