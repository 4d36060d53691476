package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"null", nil, "null"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"integer number", json.Number("7"), "7"},
		{"float number", json.Number("1.50"), "1.5"},
		{"exponent number", json.Number("1e2"), "100"},
		{"float64", 0.25, "0.25"},
		{"tiny float", 1e-7, "1e-7"},
		{"huge float", 1.5e300, "1.5e+300"},
		{"simple object", map[string]any{"a": 1}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  3,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("<a href=\"x\">&</a>")
	require.NoError(t, err)
	assert.Equal(t, `"<a href=\"x\">&</a>"`, string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// A literal backslash followed by the text u2028 stays escaped.
	result, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form.
	result, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"zoom": json.Number("NaN")})
	assert.Error(t, err)
}

func TestMarshalCanonicalStruct(t *testing.T) {
	layer := Layer{
		Name:    "Base",
		Type:    LayerTypeRaster,
		Visible: true,
		Parameters: Parameters{
			"source":  "S1",
			"opacity": json.Number("0.80"),
		},
	}

	result, err := MarshalCanonical(layer)
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"Base","parameters":{"opacity":0.8,"source":"S1"},"type":"RasterLayer","visible":true}`,
		string(result))
}

func TestMarshalCanonicalDeterministic(t *testing.T) {
	c := NewContent()
	c.Layers["b"] = Layer{Name: "B", Type: LayerTypeVector}
	c.Layers["a"] = Layer{Name: "A", Type: LayerTypeRaster}
	c.LayerTree = []LayerTreeItem{Leaf("a"), Group("g", Leaf("b"))}

	first, err := MarshalCanonical(c)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := MarshalCanonical(c)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMarshalCanonicalIndent(t *testing.T) {
	out, err := MarshalCanonicalIndent(map[string]any{"b": []any{1}, "a": true})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": true,\n  \"b\": [\n    1\n  ]\n}\n", string(out))
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// U+1F600 (surrogate pair D83D DE00) sorts before U+FF61 in UTF-16,
	// but after it in UTF-8 byte order.
	obj := map[string]int{"\uFF61": 1, "\U0001F600": 2}
	assert.Equal(t, []string{"\U0001F600", "\uFF61"}, SortedKeys(obj))
}
