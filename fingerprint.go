package usagegate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashFingerprint derives an opaque client identifier from raw fingerprint
// material (IP, header bundle). Keyed HMAC-SHA256: irreversible without the
// secret, so raw client identifiers never reach storage keys.
func HashFingerprint(secret, source string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(source))
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

// guestID synthesizes a durable-looking principal id for anonymous clients.
func guestID(hash string) string {
	return "guest:" + hash
}
