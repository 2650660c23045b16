package embedding

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashText(t *testing.T) {
	assert.Equal(t, int32(0), hashText(""))
	assert.Equal(t, int32(97), hashText("a"))
	assert.Equal(t, int32(98+97*31), hashText("ab"))
	// Long inputs wrap around instead of overflowing.
	assert.NotPanics(t, func() { hashText(strings.Repeat("z", 10000)) })
}

func TestFallbackDeterministic(t *testing.T) {
	a := Fallback("Senior Go engineer, Kubernetes, AWS", Dimensions)
	b := Fallback("Senior Go engineer, Kubernetes, AWS", Dimensions)
	assert.Equal(t, a, b)

	c := Fallback("Product designer, Figma", Dimensions)
	assert.NotEqual(t, a, c)
}

func TestFallbackShape(t *testing.T) {
	for _, text := range []string{"a", "hello world", "résumé ✓", strings.Repeat("go ", 3000)} {
		v := Fallback(text, Dimensions)
		require.Len(t, v, Dimensions)
		assert.InDelta(t, 1.0, v.Norm(), 1e-5, "text %q", text)
	}
}

func TestFallbackZeroHash(t *testing.T) {
	// Every write lands on index 0 with sin(0) = 0, so nothing is normalized.
	v := Fallback("", Dimensions)
	require.Len(t, v, Dimensions)
	assert.Equal(t, 0.0, v.Norm())
	for _, x := range v {
		assert.False(t, math.IsNaN(float64(x)))
	}
}

func TestFallbackDimensions(t *testing.T) {
	assert.Len(t, Fallback("x", 64), 64)
	assert.Len(t, Fallback("x", 0), Dimensions)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "short", NormalizeText("short"))
	assert.Equal(t, MaxInputChars, len(NormalizeText(strings.Repeat("x", 9000))))

	// Characters, not bytes.
	long := strings.Repeat("é", MaxInputChars+5)
	got := NormalizeText(long)
	assert.Equal(t, MaxInputChars, len([]rune(got)))
	assert.Equal(t, strings.Repeat("é", MaxInputChars), got)

	exact := strings.Repeat("é", MaxInputChars)
	assert.Equal(t, exact, NormalizeText(exact))
}

func TestNormalizeTextAstralCharacters(t *testing.T) {
	// One code point each, two UTF-16 units each.
	long := strings.Repeat("🚀", MaxInputChars+1)
	got := NormalizeText(long)
	assert.Equal(t, MaxInputChars, len([]rune(got)))
	assert.True(t, utf8.ValidString(got))
}

type label string

func (l label) String() string { return "label:" + string(l) }

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "plain text", "plain text"},
		{"bytes", []byte("raw"), "raw"},
		{"raw json", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"stringer", label("x"), "label:x"},
		{"map", map[string]any{"skills": []string{"go"}}, `{"skills":["go"]}`},
		{"number", 42, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeValue(tt.in))
		})
	}

	long := NormalizeValue([]byte(strings.Repeat("y", MaxInputChars*2)))
	assert.Len(t, long, MaxInputChars)
}

func TestUnit(t *testing.T) {
	v := unit([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.Equal(t, Vector{0, 0}, unit([]float32{0, 0}))
}
