package internal

import (
	"crypto/rand"
	"encoding/base64"
)

const challengeTokenBytes = 32

// NewChallengeToken returns an opaque 256-bit random token. Challenge
// tokens are bearer handles, so they carry more entropy than a v4 UUID.
func NewChallengeToken() (string, error) {
	raw := make([]byte, challengeTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
