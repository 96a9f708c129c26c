package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives a stable device identifier from client-supplied headers.
// Two requests from the same browser configuration always produce the same
// fingerprint. Distinct real devices with identical headers collide; the
// fingerprint is a weak identifier and callers must treat it as such.
func Fingerprint(userAgent, acceptLanguage, acceptEncoding string) string {
	h := sha256.Sum256([]byte(userAgent + "|" + acceptLanguage + "|" + acceptEncoding))
	return hex.EncodeToString(h[:])
}
