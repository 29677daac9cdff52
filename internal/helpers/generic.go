package helpers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateToken returns len random bytes hex encoded. Used for oauth state
// values and pkce verifiers.
func GenerateToken(len int) (string, error) {
	b := make([]byte, len)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// GenerateCodeChallenge derives the S256 code challenge for a pkce verifier.
func GenerateCodeChallenge(pkceVerifier string) string {
	h := sha256.New()
	h.Write([]byte(pkceVerifier))
	hash := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(hash)
}

// PlaceholderEmail synthesizes a deterministic identifier for provider
// accounts that expose no email. Distinct provider ids can never collide.
func PlaceholderEmail(providerUserId string) string {
	return fmt.Sprintf("x-%s@users.replydash.local", providerUserId)
}
