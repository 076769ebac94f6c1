package users

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordBytes is the amount of random data behind a generated password.
const DefaultPasswordBytes = 9

// RandomPasswordGenerator produces one-time passwords from a cryptographically
// secure source. Reader defaults to crypto/rand.
type RandomPasswordGenerator struct {
	Reader io.Reader
	Size   int
}

// NewPasswordGenerator returns a generator backed by crypto/rand.
func NewPasswordGenerator() RandomPasswordGenerator {
	return RandomPasswordGenerator{Reader: rand.Reader, Size: DefaultPasswordBytes}
}

// Generate returns a printable password with base64 padding stripped.
func (g RandomPasswordGenerator) Generate() (string, error) {
	size := g.Size
	if size <= 0 {
		size = DefaultPasswordBytes
	}
	reader := g.Reader
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return "", fmt.Errorf("users: read random: %w", err)
	}
	return strings.TrimRight(base64.StdEncoding.EncodeToString(buf), "="), nil
}

// BcryptHasher hashes secrets with bcrypt.
type BcryptHasher struct {
	Cost int
}

// Hash returns the bcrypt hash of secret.
func (h BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("users: password is empty")
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("users: hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether secret matches hash. Malformed hashes never match.
func (h BcryptHasher) Verify(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
