package store

import (
	"crypto/sha256"
	"fmt"
)

// HashInput computes SHA-256 of the lexicon fingerprint + input text.
//
// The same ledger extracted with different word lists is a new run rather
// than a duplicate, even when the lexicon kept its version string.
func HashInput(text, lexiconFingerprint string) string {
	h := sha256.New()
	h.Write([]byte(lexiconFingerprint))
	h.Write([]byte{0}) // separator
	h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum(nil))
}
