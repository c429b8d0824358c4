package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verify reports whether signature is a valid HMAC-SHA256 hex digest of body
// under secret. Comparison is constant time. An empty secret never verifies;
// the caller must treat a missing secret as a configuration error, not as a
// pass.
func Verify(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWithPrefix verifies a header of the form "<prefix><hex digest>", as
// used by Meta's X-Hub-Signature-256 ("sha256=..."). A header without the
// prefix is rejected.
func VerifyWithPrefix(body []byte, header, prefix, secret string) bool {
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	return Verify(body, strings.TrimPrefix(header, prefix), secret)
}
