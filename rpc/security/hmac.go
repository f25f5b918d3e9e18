package security

import (
	"crypto/hmac"
	"crypto/sha256"
)

// NewHMACSigner creates a signer using HMAC-SHA256.
// The HMAC key is the SHA-256 hash of the given secret.
func NewHMACSigner(secret string) ISigner {
	key := sha256.Sum256([]byte(secret))
	return &hmacSigner{key: key[:]}
}

// hmacSigner implements ISigner with HMAC-SHA256
type hmacSigner struct {
	key []byte
}

// --------------------------------------------------------------------------
// Interface Methods (docu see security.ISigner)
// --------------------------------------------------------------------------

func (s *hmacSigner) Sign(data []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return mac.Sum(nil)
}

func (s *hmacSigner) Verify(data, tag []byte) bool {
	return hmac.Equal(s.Sign(data), tag)
}
