// Package otp generates one-time passcodes and the keyed digests stored in
// their place.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

const (
	minCode = 100000
	maxCode = 999999
)

var codeSpan = big.NewInt(maxCode - minCode + 1)

// Generate returns a uniformly distributed 6-digit code in [100000, 999999].
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+minCode), nil
}

// Hasher computes HMAC-SHA256 digests of codes under a server-held key.
type Hasher struct {
	key []byte
}

func NewHasher(key []byte) (*Hasher, error) {
	if len(key) == 0 {
		return nil, errors.New("otp hasher: empty key")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}, nil
}

// Digest returns the hex-encoded HMAC of code.
func (h *Hasher) Digest(code string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches compares code against a stored digest in constant time.
func (h *Hasher) Matches(code, digest string) bool {
	return hmac.Equal([]byte(h.Digest(code)), []byte(digest))
}

// DeriveKey expands secret into a 32-byte HKDF sub-key bound to info.
func DeriveKey(secret []byte, info string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("derive key: empty secret")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
