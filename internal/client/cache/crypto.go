package cache

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// DeriveKey stretches a passphrase into a 256-bit cache encryption key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// aead seals and opens cache payloads. Sealed blobs are nonce || ciphertext.
type aead interface {
	seal(plain []byte) ([]byte, error)
	open(blob []byte) ([]byte, error)
}

type gcmAEAD struct {
	g cipher.AEAD
}

func newAEAD(key []byte) (aead, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	g, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &gcmAEAD{g: g}, nil
}

func (a *gcmAEAD) seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, a.g.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return a.g.Seal(nonce, nonce, plain, nil), nil
}

func (a *gcmAEAD) open(blob []byte) ([]byte, error) {
	n := a.g.NonceSize()
	if len(blob) < n {
		return nil, errors.New("sealed payload too short")
	}
	return a.g.Open(nil, blob[:n], blob[n:], nil)
}
