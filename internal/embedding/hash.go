package embedding

import (
	"math"
	"strings"
)

// HashEmbed is the deterministic fallback embedding: every rune of the
// lowercased text increments bucket rune mod dim, then the vector is
// L2-normalized. Empty text yields the zero vector.
func HashEmbed(text string, dim int) []float32 {
	if dim <= 0 {
		return nil
	}
	vec := make([]float64, dim)
	for _, r := range strings.ToLower(text) {
		vec[int(r)%dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, dim)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
