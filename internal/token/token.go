// Package token implements the pairing tokens used to authenticate
// remote-control clients. Tokens are stored hashed, never raw.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/playhead/playhead/internal/domain"
)

const (
	scryptN = 1 << 15 // 32768
	scryptR = 8
	scryptP = 1
	saltLen = 16
	keyLen  = 32
)

// RawToken is a raw pairing token in hexadecimal format.
//
// It must not be persisted.
type RawToken string

// Generate creates a new random pairing token and returns its raw
// hexadecimal representation and a hashed version suitable for storage.
func Generate(expiresAt time.Time) (RawToken, domain.Token, error) {
	raw := make([]byte, keyLen)
	if _, err := rand.Read(raw); err != nil {
		return "", domain.Token{}, err
	}

	rawToken := RawToken(hex.EncodeToString(raw))
	tok, err := New(rawToken, expiresAt)
	if err != nil {
		return "", domain.Token{}, err
	}

	return rawToken, tok, nil
}

// New hashes the provided raw token for storage.
func New(rawToken RawToken, expiresAt time.Time) (domain.Token, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return domain.Token{}, err
	}

	hash, err := scrypt.Key([]byte(rawToken), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return domain.Token{}, err
	}

	saltB64 := base64.StdEncoding.EncodeToString(salt)
	hashB64 := base64.StdEncoding.EncodeToString(hash)

	return domain.Token{
		Hashed:    fmt.Sprintf("scrypt$%s$%s", saltB64, hashB64),
		ExpiresAt: expiresAt,
	}, nil
}

// Matches checks if the provided raw token matches the stored token.
func Matches(tok domain.Token, rawToken RawToken) (bool, error) {
	parts := strings.Split(tok.Hashed, "$")
	if len(parts) != 3 || parts[0] != "scrypt" {
		return false, errors.New("invalid token format")
	}

	saltB64, hashB64 := parts[1], parts[2]

	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, err
	}
	storedHash, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil {
		return false, err
	}

	hash, err := scrypt.Key([]byte(rawToken), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(hash, storedHash) == 1, nil
}

// Expired returns true if the token has an expiry time in the past.
func Expired(tok domain.Token, now time.Time) bool {
	return !tok.ExpiresAt.IsZero() && tok.ExpiresAt.Before(now)
}
