// Package crypto seals short-lived opaque values, such as OAuth state,
// with AES-256-GCM so they can round-trip through a browser untouched.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformed = errors.New("sealed value is malformed")
	ErrExpired   = errors.New("sealed value has expired")
)

// issuedAtSize is the big-endian unix timestamp prepended to every payload.
const issuedAtSize = 8

type Sealer struct {
	aead cipher.AEAD
}

// NewSealer takes a base64 encoded 32 byte key.
func NewSealer(key string) (*Sealer, error) {
	if key == "" {
		return nil, errors.New("sealing key is required")
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode sealing key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("sealing key must decode to 32 bytes, got %d", len(raw))
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal stamps payload with issuedAt and returns a URL-safe token.
func (s *Sealer) Seal(payload string, issuedAt time.Time) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	plain := make([]byte, issuedAtSize, issuedAtSize+len(payload))
	binary.BigEndian.PutUint64(plain, uint64(issuedAt.Unix()))
	plain = append(plain, payload...)

	sealed := s.aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open verifies token and returns its payload. A token issued more than
// maxAge before now, or after now, is rejected with ErrExpired.
func (s *Sealer) Open(token string, maxAge time.Duration, now time.Time) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrMalformed
	}
	n := s.aead.NonceSize()
	if len(data) < n+issuedAtSize {
		return "", ErrMalformed
	}
	plain, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil || len(plain) < issuedAtSize {
		return "", ErrMalformed
	}

	issued := time.Unix(int64(binary.BigEndian.Uint64(plain[:issuedAtSize])), 0)
	if age := now.Sub(issued); age < -time.Second || age > maxAge {
		return "", ErrExpired
	}
	return string(plain[issuedAtSize:]), nil
}
