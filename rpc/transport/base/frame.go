package base

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/google/uuid"
	"io"
	"net"
)

// Frame layout:
//   - 4 bytes: total size (uint32, big endian) = IDSize + len(payload)
//   - 16 bytes: correlation id
//   - N bytes: payload
//
// The first payload byte is the frame kind, the rest is the encoded envelope.
// The codec functions in this file do not look at the kind, only the
// connection does.
const (
	SizeFieldLen = 4
	IDSize       = 16
	HeaderSize   = SizeFieldLen + IDSize
)

// EncodeFrame builds a complete frame for the given id and payload
func EncodeFrame(id uuid.UUID, payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	putHeader(frame, id, len(payload))
	copy(frame[HeaderSize:], payload)
	return frame
}

// DecodeHeader parses the first HeaderSize bytes of a frame
func DecodeHeader(header []byte) (uint32, uuid.UUID, error) {
	if len(header) < HeaderSize {
		return 0, uuid.Nil, io.ErrUnexpectedEOF
	}

	totalSize := binary.BigEndian.Uint32(header[:SizeFieldLen])
	if totalSize < IDSize {
		return 0, uuid.Nil, fmt.Errorf("%w: declared size %d", common.ErrFrameTooShort, totalSize)
	}

	var id uuid.UUID
	copy(id[:], header[SizeFieldLen:HeaderSize])
	return totalSize, id, nil
}

// PayloadSize returns the payload length for a declared total size
func PayloadSize(totalSize uint32) int {
	return int(totalSize) - IDSize
}

// WriteFrame writes one frame with the payload [kind][body] to w.
// Header and body are written with net.Buffers, the caller is responsible
// for serializing concurrent writers.
func WriteFrame(w io.Writer, id uuid.UUID, kind common.FrameKind, body []byte) (int64, error) {
	header := make([]byte, HeaderSize+1)
	putHeader(header, id, len(body)+1)
	header[HeaderSize] = byte(kind)

	b := net.Buffers{header, body}
	return b.WriteTo(w)
}

// ReadFrame reads one complete frame from r and returns its id and payload.
// Payloads larger than maxPayload are rejected before they are read (maxPayload <= 0 = no limit).
func ReadFrame(r io.Reader, maxPayload int) (uuid.UUID, []byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return uuid.Nil, nil, err
	}

	totalSize, id, err := DecodeHeader(header)
	if err != nil {
		return uuid.Nil, nil, err
	}

	size := PayloadSize(totalSize)
	if maxPayload > 0 && size > maxPayload {
		return uuid.Nil, nil, fmt.Errorf("%w: %d > %d bytes", common.ErrFrameTooLarge, size, maxPayload)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return uuid.Nil, nil, err
	}
	return id, payload, nil
}

// putHeader writes the size prefix and the id into the first HeaderSize bytes of dst
func putHeader(dst []byte, id uuid.UUID, payloadLen int) {
	binary.BigEndian.PutUint32(dst[:SizeFieldLen], uint32(IDSize+payloadLen))
	copy(dst[SizeFieldLen:HeaderSize], id[:])
}
