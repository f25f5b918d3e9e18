// Package serializer provides payload serialization for the dRPC system. It
// defines the value serializer used for call arguments and results, and the
// envelope codec that turns the payload envelope into frame bytes.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Keeping the transport independent of the encoding (payloads are opaque bytes there)
//   - Offering a compact binary envelope format next to the readable JSON one
//
// Key Components:
//
//   - IRPCSerializer: Core interface for value serializers (JSON, GOB).
//
//   - IEnvelopeCodec: Interface for envelope codecs. NewSerializerEnvelopeCodec
//     adapts any IRPCSerializer, NewBinaryEnvelopeCodec uses a flag-based binary
//     format that encodes only present fields.
//
//   - jsonSerializerImpl: JSON encoding, the default. Human-readable and
//     interoperable with peers written in other languages.
//
//   - gobSerializerImpl: Go's gob encoding, useful when both peers are Go
//     programs and the values are complex Go types.
//
// Thread Safety:
//
//	All implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewJSONSerializer()
//	data, err := s.Serialize([]int{2, 3})
//	// ... send data ...
//	var args []int
//	err = s.Deserialize(data, &args)
package serializer
