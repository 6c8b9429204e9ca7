package canonical

import (
	"crypto/sha256"
	"encoding/hex"
)

const genesis = "GENESIS"

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
