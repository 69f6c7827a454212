// Package cryptoutils seals registry data at rest with a passphrase.
package cryptoutils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// sealMagic prefixes every sealed blob and is authenticated as additional data.
var sealMagic = []byte("URSEAL1")

const (
	saltSize  = 16
	nonceSize = 12 // standard GCM nonce
)

var (
	// ErrEmptyPassphrase is returned when sealing or opening without a passphrase.
	ErrEmptyPassphrase = errors.New("empty passphrase")

	// ErrNotSealed is returned when opening data that was not produced by SealWithPassphrase.
	ErrNotSealed = errors.New("data is not sealed")
)

// deriveSealingKey stretches a passphrase into an AES-256 key with Argon2id.
func deriveSealingKey(passphrase, salt []byte) []byte {
	// Parameters: time=1, memory=64*1024, threads=4, keyLen=32
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// SealWithPassphrase encrypts data with a key derived from passphrase.
// A fresh salt and nonce are generated for each call.
//
// Format: [magic][salt (16 bytes)][nonce (12 bytes)][ciphertext]
func SealWithPassphrase(passphrase, data []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aesGCM, err := newGCM(deriveSealingKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(sealMagic)+saltSize+nonceSize+len(data)+aesGCM.Overhead())
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aesGCM.Seal(out, nonce, data, sealMagic), nil
}

// OpenWithPassphrase decrypts data produced by SealWithPassphrase.
func OpenWithPassphrase(passphrase, sealed []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	if !IsSealed(sealed) || len(sealed) < len(sealMagic)+saltSize+nonceSize {
		return nil, ErrNotSealed
	}

	rest := sealed[len(sealMagic):]
	salt, nonce, ciphertext := rest[:saltSize], rest[saltSize:saltSize+nonceSize], rest[saltSize+nonceSize:]

	aesGCM, err := newGCM(deriveSealingKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, sealMagic)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// IsSealed reports whether data carries the sealing header.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealMagic)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
