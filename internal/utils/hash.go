package utils

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const apiKeyPrefix = "sk_gw_"

// GenerateAPIKey returns a new random merchant API secret.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

// HashAPIKey returns a bcrypt hash of the provided API key.
func HashAPIKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckAPIKey compares a bcrypt hashed API key with its possible plaintext equivalent.
func CheckAPIKey(hashedKey, key string) bool {
	if hashedKey == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key)) == nil
}
