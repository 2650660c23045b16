package embedding

import "math"

// fallbackWrites is the number of positions written by Fallback.
const fallbackWrites = 100

// hashText folds every character into a 32-bit rolling hash
// (acc = c + acc*31) with two's-complement wraparound.
func hashText(text string) int32 {
	var acc int32
	for _, r := range text {
		acc = int32(r) + (acc << 5) - acc
	}
	return acc
}

// Fallback derives a unit-length pseudo-embedding of length dims from
// text. It is a pure function: equal inputs give bit-identical vectors.
// A non-positive dims means Dimensions.
func Fallback(text string, dims int) Vector {
	if dims <= 0 {
		dims = Dimensions
	}
	hash := int64(hashText(text))

	acc := make([]float64, dims)
	for i := int64(0); i < fallbackWrites; i++ {
		h := hash * (i + 1)
		idx := h % int64(dims)
		if idx < 0 {
			idx = -idx
		}
		// Later writes at the same index overwrite earlier ones.
		acc[idx] = math.Sin(float64(h)) * 0.1
	}
	normalize(acc)

	out := make(Vector, dims)
	for i, x := range acc {
		out[i] = float32(x)
	}
	return out
}
