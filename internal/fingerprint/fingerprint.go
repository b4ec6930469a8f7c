package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// keyBytes is the truncated digest length. 16 bytes is plenty for
// anti-abuse bucketing; this is not an authentication boundary.
const keyBytes = 16

// DeriveClientKey turns a network address and user-agent string into a
// stable anonymous client key. The same inputs always produce the same
// key across process restarts (no salt), and the key cannot be reversed
// back to the inputs.
//
// An empty or "unknown" address is accepted: all such clients share one
// bucket, which is the documented tradeoff for proxy-stripped requests.
func DeriveClientKey(address, userAgent string) string {
	sum := sha256.Sum256([]byte(address + "|" + userAgent))
	return hex.EncodeToString(sum[:keyBytes])
}

// Redact shortens a client key for display or logging so the full raw
// key is never echoed back by administrative responses.
func Redact(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
