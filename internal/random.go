package internal

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

const opaqueTokenSize = 32

// NewJTI returns a random (v4) UUID string used as a JWT id.
func NewJTI() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewOpaqueToken returns 32 random bytes encoded as unpadded base64url.
func NewOpaqueToken() (string, error) {
	var raw [opaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidOpaqueToken reports whether token has the shape NewOpaqueToken produces.
// It lets callers reject junk before touching the store.
func ValidOpaqueToken(token string) bool {
	if len(token) != base64.RawURLEncoding.EncodedLen(opaqueTokenSize) {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil && len(raw) == opaqueTokenSize
}
