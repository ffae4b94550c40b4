package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips diacritics",
			input:    "São João",
			expected: "sao joao",
		},
		{
			name:     "replaces punctuation with spaces",
			input:    "Castelo de S. Jorge",
			expected: "castelo de s jorge",
		},
		{
			name:     "collapses whitespace",
			input:    "  Torre   de\tBelém  ",
			expected: "torre de belem",
		},
		{
			name:     "keeps digits",
			input:    "Rua 25 de Abril",
			expected: "rua 25 de abril",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "only punctuation",
			input:    "---...!!!",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Igreja de São João",
		"Palácio da Pena!!!",
		"  Mosteiro   dos Jerónimos  ",
		"plain ascii",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "Normalize must be idempotent for %q", in)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "drops short noise tokens",
			input:    "Igreja de São João",
			expected: []string{"igreja", "sao", "joao"},
		},
		{
			name:     "deduplicates",
			input:    "jardim jardim botânico",
			expected: []string{"jardim", "botanico"},
		},
		{
			name:     "blank input",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "all tokens short",
			input:    "de da do",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokenize(tt.input))
		})
	}
}
