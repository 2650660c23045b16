// Package embedding turns resume and query text into fixed-length vectors
// for similarity search.
//
// The Service is total: every call returns a vector of the configured
// dimension. Input is truncated to MaxInputChars characters and cached by
// its truncated form. Rate-limited provider calls are retried with
// exponential backoff, and any other provider failure (or a missing
// provider) falls back to a deterministic local vector.
package embedding

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	// Dimensions is the vector length of text-embedding-3-small.
	Dimensions = 1536
	// MaxInputChars bounds the text sent to providers and used as cache key.
	MaxInputChars = 8000
	// DefaultMaxRetries is the number of retries after the first rate-limited call.
	DefaultMaxRetries = 3
	// NoRetries in Options.MaxRetries disables retries.
	NoRetries = -1
)

// Vector is an embedding.
type Vector []float32

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// normalize scales v to unit length in place. A zero vector is left as is.
func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	mag := math.Sqrt(sum)
	if mag == 0 {
		return
	}
	for i := range v {
		v[i] /= mag
	}
}

// NormalizeText truncates text to its first MaxInputChars characters.
// Characters are Unicode code points, not UTF-16 code units, so text
// outside the BMP is never split inside a surrogate pair.
func NormalizeText(text string) string {
	if len(text) <= MaxInputChars {
		return text // fewer bytes than the limit means fewer runes too
	}
	n := 0
	for i := range text {
		if n == MaxInputChars {
			return text[:i]
		}
		n++
	}
	return text
}

// NormalizeValue serializes v to a string and truncates it. Strings pass
// through, []byte and json.RawMessage are taken verbatim, Stringers use
// String, and anything else is JSON-encoded.
func NormalizeValue(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		s = ""
	case string:
		s = t
	case json.RawMessage:
		s = string(t)
	case []byte:
		s = string(t)
	case fmt.Stringer:
		s = t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprint(t)
		} else {
			s = string(b)
		}
	}
	return NormalizeText(s)
}

// Outcome names the path that produced a vector.
type Outcome string

const (
	OutcomeCache    Outcome = "cache"
	OutcomeProvider Outcome = "provider"
	OutcomeFallback Outcome = "fallback"
)
