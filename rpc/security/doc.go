// Package security provides the optional integrity and confidentiality hooks of
// the envelope pipeline.
//
// Key Components:
//
//   - ISigner / NewHMACSigner: HMAC-SHA256 tags over the envelope data. The key
//     is derived from a shared secret.
//
//   - ICipher / NewAEADCipher: XChaCha20-Poly1305 encryption of the whole encoded
//     envelope with a random nonce per message.
//
//   - Pipeline: Wraps an envelope for the wire (sign, encode, encrypt) and
//     unwraps it on receipt (decrypt, decode, verify). A message that fails
//     decryption or verification is rejected with common.ErrIntegrity and is
//     never treated as a successful call.
//
// Both peers of a connection must use the same codec and the same secrets.
package security
