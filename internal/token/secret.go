package token

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// API-key secrets are stored in a reversible itsdangerous-style encoding:
// a base64url payload, a dot, and an opaque trailer. Only the payload is
// meaningful to the gateway; the trailer is preserved for compatibility
// with the legacy writer and never checked here.

// WrapSecret encodes a plaintext secret into the at-rest format.
func WrapSecret(secret string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(secret))
	digest := sha256.Sum256([]byte(secret))
	trailer := base64.RawURLEncoding.EncodeToString(digest[:8])
	return payload + "." + trailer
}

// UnwrapSecret decodes the at-rest encoding back to the plaintext secret.
// It splits on the first dot and base64url-decodes the leading segment,
// re-padding as needed. Malformed input degrades to ("", false) rather
// than failing the caller; a key whose secret cannot be decoded simply
// never matches a signature.
func UnwrapSecret(stored string) (string, bool) {
	if stored == "" {
		return "", false
	}
	payload, _, _ := strings.Cut(stored, ".")
	if pad := len(payload) % 4; pad != 0 {
		payload += strings.Repeat("=", 4-pad)
	}
	decoded, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}
