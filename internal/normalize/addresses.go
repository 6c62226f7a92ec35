package normalize

import (
	"bytes"

	"filippo.io/edwards25519"

	"github.com/mr-tron/base58"
)

// ValidAddress reports whether s decodes as a 32-byte base58 Solana
// address.
func ValidAddress(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(raw) == 32
}

// IsOnCurve reports whether the address is a valid ed25519 curve point.
// Wallet keys are on-curve; program-derived addresses (bonding curves,
// AMM vaults) are not. Dev-sold attribution only trusts on-curve trader
// keys so a vault address can never flip the creator status.
func IsOnCurve(address string) bool {
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != 32 {
		return false
	}
	p, err := new(edwards25519.Point).SetBytes(raw)
	if err != nil {
		return false
	}
	// SetBytes tolerates non-canonical encodings; only a canonical
	// round-trip counts as a real wallet key.
	return bytes.Equal(p.Bytes(), raw)
}
