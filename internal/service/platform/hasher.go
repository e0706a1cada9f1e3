package platform

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

var DefaultHasher KeyHasher = BcryptHasher{}

// Bcrypt API key hasher
// Keys are pre-hashed with sha256 to stay under bcrypt's 72 byte input limit
type BcryptHasher struct{}

func (h BcryptHasher) Hash(key string) (string, error) {
	sum := sha256.Sum256([]byte(key))
	hash, err := bcrypt.GenerateFromPassword(sum[:], bcrypt.DefaultCost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedKey string, key string) error {
	sum := sha256.Sum256([]byte(key))
	return bcrypt.CompareHashAndPassword([]byte(hashedKey), sum[:])
}
