package queue

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the dedup/identity key for a request: the lower-hex
// SHA-256 of "METHOD:URL:BODY". Two enqueue calls with the same fingerprint
// refer to the same logical request and collapse into the existing row
// (internal/cache uses the same fingerprint to key cached responses).
func Fingerprint(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(":"))
	h.Write([]byte(url))
	h.Write([]byte(":"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
