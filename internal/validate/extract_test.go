package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"surrounding whitespace", "  \n{\"a\": 1}\n  ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestExtractJSONBlock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"plain object",
			`{"name": "Colosseum"}`,
			`{"name": "Colosseum"}`,
		},
		{
			"prose around payload",
			`Here is the result: {"name": "Colosseum"} hope that helps!`,
			`{"name": "Colosseum"}`,
		},
		{
			"array payload",
			`[1, 2, 3] trailing`,
			`[1, 2, 3]`,
		},
		{
			"braces inside string literals",
			`{"note": "use {curly} and \"quoted\" text", "n": 1}`,
			`{"note": "use {curly} and \"quoted\" text", "n": 1}`,
		},
		{
			"nested objects",
			`x {"a": {"b": {"c": []}}} y`,
			`{"a": {"b": {"c": []}}}`,
		},
		{
			"escaped backslash before quote",
			`{"path": "C:\\"} rest`,
			`{"path": "C:\\"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractJSONBlock(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONBlockErrors(t *testing.T) {
	t.Parallel()

	_, err := ExtractJSONBlock("no json here at all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON object or array")

	_, err = ExtractJSONBlock(`{"unclosed": [1, 2`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbalanced")
}
