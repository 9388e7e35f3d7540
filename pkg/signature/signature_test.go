package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyValidSignature(t *testing.T) {
	payload := []byte(`{"action":"opened","number":7}`)
	secret := "webhook-secret"

	assert.True(t, Verify(payload, sign(payload, secret), secret))
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	assert.False(t, Verify([]byte("payload"), "", "secret"))
}

func TestVerifyRejectsWrongPrefix(t *testing.T) {
	payload := []byte("payload")
	sig := sign(payload, "secret")
	// sha1= prefixed signatures are the legacy scheme and are not accepted.
	legacy := "sha1=" + sig[len(Prefix):]

	assert.False(t, Verify(payload, legacy, "secret"))
}

func TestVerifyRejectsEmptySecret(t *testing.T) {
	payload := []byte("payload")
	assert.False(t, Verify(payload, sign(payload, ""), ""))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"action":"opened"}`)
	sig := sign(payload, "secret")

	tampered := []byte(`{"action":"closed"}`)
	assert.False(t, Verify(tampered, sig, "secret"))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"action":"opened"}`)
	sig := sign(payload, "secret")

	assert.False(t, Verify(payload, sig, "other-secret"))
}

func TestVerifyRejectsGarbageDigest(t *testing.T) {
	assert.False(t, Verify([]byte("payload"), Prefix+"not-hex", "secret"))
}
