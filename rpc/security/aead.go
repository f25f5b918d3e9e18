package security

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"golang.org/x/crypto/chacha20poly1305"
)

// NewAEADCipher creates a cipher using XChaCha20-Poly1305.
// The key is the SHA-256 hash of the given secret, every message gets a fresh random nonce
// which is prepended to the ciphertext.
func NewAEADCipher(secret string) (ICipher, error) {
	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %v", err)
	}
	return &aeadCipher{aead: aead}, nil
}

// aeadCipher implements ICipher with an AEAD
type aeadCipher struct {
	aead cipher.AEAD
}

// --------------------------------------------------------------------------
// Interface Methods (docu see security.ICipher)
// --------------------------------------------------------------------------

func (c *aeadCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("failed to create nonce: %v", err)
	}
	return c.aead.Seal(out, out[:nonceSize], plaintext, nil), nil
}

func (c *aeadCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize+c.aead.Overhead() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return c.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
}
