// Package idhash computes deterministic identifiers for feed events.
// The upstream feed has no replay capability but does occasionally
// redeliver an identical message; fingerprints give the aggregation
// engine a best-effort duplicate check.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// EventFingerprint computes a deterministic fingerprint using SHA256.
// Formula: SHA256(mint|timestamp|trader|side|sol_amount|signature)
// Returns hex-encoded hash (64 characters).
//
// Signature is the strongest component when present; the remaining
// fields keep the fingerprint useful for feed shapes that omit it.
func EventFingerprint(
	mint string,
	timestamp int64,
	trader string,
	side string,
	solAmount float64,
	signature string,
) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%.9f|%s",
		mint,
		timestamp,
		trader,
		side,
		solAmount,
		signature,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
