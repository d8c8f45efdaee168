package pubsub

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Sealer encrypts payloads for the secondary channel with XChaCha20-Poly1305.
// Sealed output is nonce || ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(key []byte) (*Sealer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("can't init cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

func NewSealerFromHex(key string) (*Sealer, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	return NewSealer(raw)
}

func (s *Sealer) Seal(plaintext, topic []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, topic), nil
}

func (s *Sealer) Open(sealed, topic []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+chacha20poly1305.Overhead {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], topic)
	if err != nil {
		return nil, fmt.Errorf("can't open sealed message: %w", err)
	}
	return plaintext, nil
}
