package spec

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Identity is a stable key for a specification: the BLAKE3 digest of its
// canonical rendering. Structurally equal specifications share an
// identity, which is what inverse caches key on.
func Identity(s Specification) string {
	sum := blake3.Sum256([]byte(Render(s)))
	return hex.EncodeToString(sum[:])
}
