package utils

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// NewDeviceKey mints a raw device key. The raw value is shown to the admin
// once; only the hash is stored.
func NewDeviceKey() string {
	return uuid.NewString()
}

func HashDeviceKey(key string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(b), err
}

func CheckDeviceKey(hash, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
