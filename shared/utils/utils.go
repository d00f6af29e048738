package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ID prefixes, one per persisted entity.
const (
	PrefixUser        = "usr"
	PrefixClient      = "cli"
	PrefixAccount     = "acc"
	PrefixAccountType = "typ"
	PrefixCard        = "crd"
	PrefixMovement    = "mov"
	PrefixDirectDebit = "dd"
)

// GenerateID generates a unique ID with the given prefix
func GenerateID(prefix string) string {
	const length = 10

	result := make([]byte, length)
	for i := range result {
		result[i] = idCharset[randInt(len(idCharset))]
	}

	return fmt.Sprintf("%s-%s", prefix, string(result))
}

// HasPrefix reports whether id was produced by GenerateID(prefix).
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-") && len(id) == len(prefix)+11
}

// randDigits returns n random decimal digits.
func randDigits(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('0' + randInt(10)))
	}
	return sb.String()
}

func randInt(n int) int {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return int(num.Int64())
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if a password matches a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
