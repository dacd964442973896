package aiclient

import (
	"crypto/sha256"
	"encoding/binary"
)

// FallbackVector derives a deterministic, clearly-synthetic vector from a
// stable hash of text when every provider has failed. It is never a
// substitute for a real embedding's semantics; callers that require
// strictness should check Client.UsedFallback and refuse to persist
// results produced while it was set.
func FallbackVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(normalize(text)))
	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		b := sum[i%len(sum):]
		if len(b) < 4 {
			b = append(append([]byte{}, b...), sum[:4-len(b)]...)
		}
		v := binary.BigEndian.Uint32(b[:4])
		// Map to [-1, 1] so downstream cosine math behaves sanely.
		out[i] = float32(v)/float32(1<<32)*2 - 1
	}
	return out
}
