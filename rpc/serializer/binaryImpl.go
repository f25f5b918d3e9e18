package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
)

// NewBinaryEnvelopeCodec creates a new envelope codec using a custom binary format
// optimized for speed and efficiency
func NewBinaryEnvelopeCodec() IEnvelopeCodec {
	return &binaryEnvelopeCodecImpl{}
}

// binaryEnvelopeCodecImpl implements IEnvelopeCodec using a custom binary format
type binaryEnvelopeCodecImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasMethod byte = 1 << 0
	hasData   byte = 1 << 1
	hasTag    byte = 1 << 2
	hasErr    byte = 1 << 3
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IEnvelopeCodec)
// --------------------------------------------------------------------------

func (b binaryEnvelopeCodecImpl) Encode(env common.Envelope) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, b.sizeBytes(env))

	var flags byte = 0
	pos := 1 // Start after flags

	// writeField writes a length prefixed field and advances pos
	writeField := func(flag byte, data []byte) {
		flags |= flag
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(data)))
		pos += 4
		copy(result[pos:pos+len(data)], data)
		pos += len(data)
	}

	if env.MethodName != "" {
		writeField(hasMethod, []byte(env.MethodName))
	}
	if env.Data != nil {
		writeField(hasData, env.Data)
	}
	if env.Tag != nil {
		writeField(hasTag, env.Tag)
	}
	if env.Err != "" {
		writeField(hasErr, []byte(env.Err))
	}

	// Set flags byte after knowing which fields are present
	result[0] = flags

	return result, nil
}

func (b binaryEnvelopeCodecImpl) Decode(data []byte, env *common.Envelope) error {
	// Check minimum size (flags)
	if len(data) < 1 {
		return fmt.Errorf("data too short for envelope header")
	}

	flags := data[0]
	pos := 1

	// readField reads a length prefixed field, the returned slice is a copy
	readField := func(name string) ([]byte, error) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("data too short for %s length", name)
		}
		n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if n < 0 || pos+n > len(data) {
			return nil, fmt.Errorf("data too short for %s data", name)
		}
		field := make([]byte, n)
		copy(field, data[pos:pos+n])
		pos += n
		return field, nil
	}

	*env = common.Envelope{}

	if flags&hasMethod != 0 {
		field, err := readField("method")
		if err != nil {
			return err
		}
		env.MethodName = string(field)
	}

	if flags&hasData != 0 {
		field, err := readField("data")
		if err != nil {
			return err
		}
		env.Data = field
	}

	if flags&hasTag != 0 {
		field, err := readField("tag")
		if err != nil {
			return err
		}
		env.Tag = field
	}

	if flags&hasErr != 0 {
		field, err := readField("error")
		if err != nil {
			return err
		}
		env.Err = string(field)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binaryEnvelopeCodecImpl) sizeBytes(env common.Envelope) int {
	// 1 byte for flags
	size := 1

	// Add sizes for fields that require length encoding (4 bytes length + data)
	if env.MethodName != "" {
		size += 4 + len(env.MethodName)
	}
	if env.Data != nil {
		size += 4 + len(env.Data)
	}
	if env.Tag != nil {
		size += 4 + len(env.Tag)
	}
	if env.Err != "" {
		size += 4 + len(env.Err)
	}

	return size
}
