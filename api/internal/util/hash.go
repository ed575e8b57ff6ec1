package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex is the hex digest used as an image key in the audit log.
func SHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
