// Package signature authenticates GitHub webhook deliveries.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prefix is the expected algorithm prefix on the signature header.
const Prefix = "sha256="

// Verify reports whether signatureHeader is a valid HMAC-SHA256 signature of
// payload under secret. The payload must be the raw, unparsed request body:
// re-serialized JSON is not byte-identical and will never verify.
//
// The digest comparison is constant-time, so a mismatch reveals nothing about
// how many leading bytes were correct.
func Verify(payload []byte, signatureHeader, secret string) bool {
	if signatureHeader == "" {
		return false
	}
	if !strings.HasPrefix(signatureHeader, Prefix) {
		return false
	}
	if secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	provided := strings.TrimPrefix(signatureHeader, Prefix)
	return hmac.Equal([]byte(expected), []byte(provided))
}
