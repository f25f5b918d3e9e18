package security

// ISigner computes and verifies integrity tags over envelope data
type ISigner interface {
	// Sign returns the tag for the given data
	Sign(data []byte) []byte
	// Verify reports whether the tag matches the data
	Verify(data, tag []byte) bool
}

// ICipher encrypts and decrypts whole encoded envelopes
type ICipher interface {
	// Encrypt returns the ciphertext of the given plaintext
	Encrypt(plaintext []byte) ([]byte, error)
	// Decrypt returns the plaintext of the given ciphertext
	// It returns an error if the ciphertext was tampered with
	Decrypt(ciphertext []byte) ([]byte, error)
}
