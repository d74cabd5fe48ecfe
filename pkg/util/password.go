package util

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret turns a static bearer secret into a bcrypt hash suitable for config files.
func HashSecret(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckSecret compares a presented secret against either a bcrypt hash or a plaintext
// value. The hash wins when both are configured. Empty configuration never matches.
func CheckSecret(presented, plain, hash string) bool {
	if presented == "" {
		return false
	}
	if hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(presented)) == nil
	}
	if plain == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(plain)) == 1
}
