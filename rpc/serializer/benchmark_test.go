package serializer

import (
	"github.com/ValentinKolb/dRPC/rpc/common"
	"testing"
)

// benchmarkEnvelopes returns a set of envelopes for targeted benchmarking
func benchmarkEnvelopes() map[string]common.Envelope {
	return map[string]common.Envelope{
		"Empty": {
			MethodName: "Ping",
		},
		"SmallData": {
			MethodName: "Add",
			Data:       []byte("[2,3]"),
		},
		"LargeData": {
			MethodName: "Store",
			Data:       make([]byte, 1024), // 1KB of data
		},
		"VeryLargeData": {
			MethodName: "Store",
			Data:       make([]byte, 1024*16), // 16KB of data
		},
		"Signed": {
			MethodName: "Add",
			Data:       []byte("[2,3]"),
			Tag:        make([]byte, 32),
		},
		"ErrorReply": {
			MethodName: "Add",
			Err:        "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
		},
	}
}

// BenchmarkEncode benchmarks encoding for all envelope codecs
func BenchmarkEncode(b *testing.B) {
	envelopes := benchmarkEnvelopes()

	for name, factory := range testEnvelopeCodecs {
		for envName, env := range envelopes {
			b.Run(name+"_"+envName, func(b *testing.B) {
				codec := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := codec.Encode(env); err != nil {
						b.Fatalf("Failed to encode: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDecode benchmarks decoding for all envelope codecs
func BenchmarkDecode(b *testing.B) {
	envelopes := benchmarkEnvelopes()

	for name, factory := range testEnvelopeCodecs {
		codec := factory()
		for envName, env := range envelopes {
			data, err := codec.Encode(env)
			if err != nil {
				b.Fatalf("Failed to encode %s with %s: %v", envName, name, err)
			}

			b.Run(name+"_"+envName, func(b *testing.B) {
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					var out common.Envelope
					if err := codec.Decode(data, &out); err != nil {
						b.Fatalf("Failed to decode: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize measures and reports the encoded size for each envelope
func BenchmarkSize(b *testing.B) {
	envelopes := benchmarkEnvelopes()

	for name, factory := range testEnvelopeCodecs {
		codec := factory()

		for envName, env := range envelopes {
			b.Run(name+"_"+envName, func(b *testing.B) {
				data, err := codec.Encode(env)
				if err != nil {
					b.Fatalf("Failed to encode: %v", err)
				}

				// Report the size as a custom metric
				b.ReportMetric(float64(len(data)), "bytes")

				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
