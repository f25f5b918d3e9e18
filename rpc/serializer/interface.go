package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
)

// IRPCSerializer is the interface for all value serializers. It turns call
// arguments and results into bytes and back.
type IRPCSerializer interface {
	// Serialize serializes a value into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(v any) ([]byte, error)
	// Deserialize deserializes a byte array into the value pointed to by v
	// It returns an error if any
	Deserialize(b []byte, v any) error
	// Name returns the name of the serializer (e.g. "json")
	Name() string
}

// IEnvelopeCodec is the interface for all envelope codecs. The encoded
// envelope is the frame payload (after the kind byte).
type IEnvelopeCodec interface {
	// Encode encodes an envelope into a byte array
	Encode(env common.Envelope) ([]byte, error)
	// Decode decodes a byte array into the given envelope
	Decode(b []byte, env *common.Envelope) error
}

// --------------------------------------------------------------------------
// Factory Methods
// --------------------------------------------------------------------------

// New creates a value serializer by name (json, gob)
func New(name string) (IRPCSerializer, error) {
	switch name {
	case "", "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}

// NewEnvelopeCodecByName creates an envelope codec by name (json, gob, binary)
func NewEnvelopeCodecByName(name string) (IEnvelopeCodec, error) {
	if name == "binary" {
		return NewBinaryEnvelopeCodec(), nil
	}
	s, err := New(name)
	if err != nil {
		return nil, fmt.Errorf("invalid envelope codec %s", name)
	}
	return NewSerializerEnvelopeCodec(s), nil
}

// NewSerializerEnvelopeCodec creates an envelope codec that encodes the envelope with a value serializer
func NewSerializerEnvelopeCodec(s IRPCSerializer) IEnvelopeCodec {
	return &serializerEnvelopeCodec{s: s}
}

// serializerEnvelopeCodec implements IEnvelopeCodec on top of an IRPCSerializer
type serializerEnvelopeCodec struct {
	s IRPCSerializer
}

func (c *serializerEnvelopeCodec) Encode(env common.Envelope) ([]byte, error) {
	return c.s.Serialize(env)
}

func (c *serializerEnvelopeCodec) Decode(b []byte, env *common.Envelope) error {
	return c.s.Deserialize(b, env)
}
