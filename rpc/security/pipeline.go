package security

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("security")

// Pipeline turns envelopes into frame payload bytes and back.
// Signing and encryption are optional: a nil signer or cipher disables the step.
//
// Wrap:   sign -> encode envelope -> encrypt
// Unwrap: decrypt -> decode envelope -> verify
//
// The tag covers the method name, the data and the error message, so a
// signed argument can not be moved to another method and calls without an
// argument are authenticated too.
type Pipeline struct {
	codec  serializer.IEnvelopeCodec
	signer ISigner
	cipher ICipher
}

// NewPipeline creates a new envelope pipeline
func NewPipeline(codec serializer.IEnvelopeCodec, signer ISigner, cipher ICipher) *Pipeline {
	return &Pipeline{
		codec:  codec,
		signer: signer,
		cipher: cipher,
	}
}

// NewPipelineFromConfig creates the pipeline described by the peer config
func NewPipelineFromConfig(config common.PeerConfig) (*Pipeline, error) {
	codec, err := serializer.NewEnvelopeCodecByName(config.EnvelopeCodec)
	if err != nil {
		return nil, err
	}

	var signer ISigner
	if config.SignSecret != "" {
		signer = NewHMACSigner(config.SignSecret)
	}

	var cipher ICipher
	if config.EncryptSecret != "" {
		if cipher, err = NewAEADCipher(config.EncryptSecret); err != nil {
			return nil, err
		}
	}

	return NewPipeline(codec, signer, cipher), nil
}

// Wrap signs, encodes and encrypts an envelope
func (p *Pipeline) Wrap(env common.Envelope) ([]byte, error) {
	if p.signer != nil {
		env.Tag = p.signer.Sign(signedContent(env))
	}

	b, err := p.codec.Encode(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	if p.cipher != nil {
		if b, err = p.cipher.Encrypt(b); err != nil {
			return nil, fmt.Errorf("failed to encrypt envelope: %w", err)
		}
	}
	return b, nil
}

// WrapError builds the payload of an error reply
func (p *Pipeline) WrapError(method string, msg string) ([]byte, error) {
	return p.Wrap(common.Envelope{MethodName: method, Err: msg})
}

// Unwrap decrypts, decodes and verifies an envelope
// Decryption and verification failures are reported as common.ErrIntegrity
func (p *Pipeline) Unwrap(b []byte) (common.Envelope, error) {
	var env common.Envelope

	if p.cipher != nil {
		plain, err := p.cipher.Decrypt(b)
		if err != nil {
			Logger.Warningf("Rejected message: %v", err)
			return env, fmt.Errorf("%w: %v", common.ErrIntegrity, err)
		}
		b = plain
	}

	if err := p.codec.Decode(b, &env); err != nil {
		return env, fmt.Errorf("failed to decode envelope: %w", err)
	}

	if p.signer != nil && !p.signer.Verify(signedContent(env), env.Tag) {
		Logger.Warningf("Rejected message for method %q: signature mismatch", env.MethodName)
		return env, fmt.Errorf("%w: signature mismatch", common.ErrIntegrity)
	}

	return env, nil
}

// signedContent is the length prefixed concatenation of every envelope field except the tag
func signedContent(env common.Envelope) []byte {
	b := make([]byte, 0, 3*binary.MaxVarintLen64+len(env.MethodName)+len(env.Data)+len(env.Err))
	for _, field := range [][]byte{[]byte(env.MethodName), env.Data, []byte(env.Err)} {
		b = binary.AppendUvarint(b, uint64(len(field)))
		b = append(b, field...)
	}
	return b
}
