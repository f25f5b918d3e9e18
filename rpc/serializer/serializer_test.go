package serializer

import (
	"github.com/ValentinKolb/dRPC/rpc/common"
	"reflect"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
}

// testEnvelopeCodecs is a map of envelope codec name to factory function
var testEnvelopeCodecs = map[string]func() IEnvelopeCodec{
	"JSON":   func() IEnvelopeCodec { return NewSerializerEnvelopeCodec(NewJSONSerializer()) },
	"GOB":    func() IEnvelopeCodec { return NewSerializerEnvelopeCodec(NewGOBSerializer()) },
	"Binary": NewBinaryEnvelopeCodec,
}

// testEnvelopes creates a set of test envelopes with different fields filled
func testEnvelopes() []common.Envelope {
	return []common.Envelope{
		// Void call without argument
		{MethodName: "Ping"},

		// Call with argument
		{
			MethodName: "Add",
			Data:       []byte("[2,3]"),
		},

		// Signed call
		{
			MethodName: "Add",
			Data:       []byte("[2,3]"),
			Tag:        []byte{0xde, 0xad, 0xbe, 0xef},
		},

		// Error reply
		{
			MethodName: "Add",
			Err:        "method not found",
		},

		// Reply without method name (e.g. encrypted peers drop it)
		{
			Data: []byte("5"),
		},
	}
}

// addArgs is a struct argument used to test structured values
type addArgs struct {
	A, B int
	Note string
}

// TestSerializerRoundTrip tests that values can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// struct
			in := addArgs{A: 2, B: 3, Note: "sum"}
			data, err := serializer.Serialize(in)
			if err != nil {
				t.Fatalf("Failed to serialize struct: %v", err)
			}
			var out addArgs
			if err := serializer.Deserialize(data, &out); err != nil {
				t.Fatalf("Failed to deserialize struct: %v", err)
			}
			if !reflect.DeepEqual(in, out) {
				t.Errorf("Struct doesn't match after round trip:\nOriginal: %+v\nResult: %+v", in, out)
			}

			// slice
			ints := []int{2, 3}
			data, err = serializer.Serialize(ints)
			if err != nil {
				t.Fatalf("Failed to serialize slice: %v", err)
			}
			var outInts []int
			if err := serializer.Deserialize(data, &outInts); err != nil {
				t.Fatalf("Failed to deserialize slice: %v", err)
			}
			if !reflect.DeepEqual(ints, outInts) {
				t.Errorf("Slice doesn't match after round trip: %v != %v", ints, outInts)
			}

			// scalar
			data, err = serializer.Serialize(5)
			if err != nil {
				t.Fatalf("Failed to serialize int: %v", err)
			}
			var outInt int
			if err := serializer.Deserialize(data, &outInt); err != nil {
				t.Fatalf("Failed to deserialize int: %v", err)
			}
			if outInt != 5 {
				t.Errorf("Expected 5, got %d", outInt)
			}
		})
	}
}

// TestEnvelopeCodecRoundTrip tests that envelopes can be encoded and decoded correctly
func TestEnvelopeCodecRoundTrip(t *testing.T) {
	envelopes := testEnvelopes()

	for name, factory := range testEnvelopeCodecs {
		t.Run(name, func(t *testing.T) {
			codec := factory()

			for i, env := range envelopes {
				data, err := codec.Encode(env)
				if err != nil {
					t.Errorf("Failed to encode envelope %d: %v", i, err)
					continue
				}

				var result common.Envelope
				if err := codec.Decode(data, &result); err != nil {
					t.Errorf("Failed to decode envelope %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(env, result) {
					t.Errorf("Envelope %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, env, result)
				}
			}
		})
	}
}

// TestJSONEnvelopeFieldNames checks the JSON field names of the envelope
func TestJSONEnvelopeFieldNames(t *testing.T) {
	codec := NewSerializerEnvelopeCodec(NewJSONSerializer())
	data, err := codec.Encode(common.Envelope{MethodName: "Add", Data: []byte("[2,3]")})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	expected := `{"methodName":"Add","data":"WzIsM10="}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, string(data))
	}
}

// TestFactories tests the name based factories
func TestFactories(t *testing.T) {
	for _, name := range []string{"", "json", "gob"} {
		if _, err := New(name); err != nil {
			t.Errorf("Expected serializer for %q, got error %v", name, err)
		}
	}
	if _, err := New("xml"); err == nil {
		t.Errorf("Expected error for unknown serializer")
	}

	for _, name := range []string{"json", "gob", "binary"} {
		if _, err := NewEnvelopeCodecByName(name); err != nil {
			t.Errorf("Expected envelope codec for %q, got error %v", name, err)
		}
	}
	if _, err := NewEnvelopeCodecByName("xml"); err == nil {
		t.Errorf("Expected error for unknown envelope codec")
	}
}

// TestBinaryEnvelopeSpecific tests specific edge cases for the binary codec
func TestBinaryEnvelopeSpecific(t *testing.T) {
	codec := NewBinaryEnvelopeCodec()

	testCases := []struct {
		name string
		env  common.Envelope
	}{
		{
			name: "Empty envelope",
			env:  common.Envelope{},
		},
		{
			name: "Empty data slice but not nil",
			env:  common.Envelope{MethodName: "Ping", Data: []byte{}},
		},
		{
			name: "Empty tag slice but not nil",
			env:  common.Envelope{MethodName: "Ping", Tag: []byte{}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := codec.Encode(tc.env)
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}

			var result common.Envelope
			if err := codec.Decode(data, &result); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}

			if tc.env.MethodName != result.MethodName {
				t.Errorf("MethodName mismatch: expected '%s', got '%s'", tc.env.MethodName, result.MethodName)
			}

			// Special handling for byte slices that may be nil or empty
			if (tc.env.Data == nil) != (result.Data == nil) {
				t.Errorf("Data nil/non-nil mismatch: expected %v, got %v", tc.env.Data, result.Data)
			}
			if (tc.env.Tag == nil) != (result.Tag == nil) {
				t.Errorf("Tag nil/non-nil mismatch: expected %v, got %v", tc.env.Tag, result.Tag)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary codec handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	codec := NewBinaryEnvelopeCodec()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{0}, // no fields
			expectError: false,
		},
		{
			name:        "Invalid length for method",
			data:        []byte{1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Missing length for data",
			data:        []byte{2, 0, 0}, // Claims data but the length is truncated
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var env common.Envelope
			err := codec.Decode(tc.data, &env)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
