package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		query     []string
		candidate []string
		expected  float64
	}{
		{
			name:      "identical token sets",
			query:     []string{"castelo", "sao", "jorge"},
			candidate: []string{"castelo", "sao", "jorge"},
			expected:  3.0,
		},
		{
			name:      "no overlap",
			query:     []string{"a"},
			candidate: []string{"b"},
			expected:  0,
		},
		{
			name:      "partial overlap with length penalty",
			query:     []string{"torre", "belem"},
			candidate: []string{"torre", "belem", "lisboa", "tejo"},
			expected:  2.0 / 3.0, // common=2, lenDiff=2
		},
		{
			name:      "empty candidate",
			query:     []string{"torre"},
			candidate: nil,
			expected:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Score(tt.query, tt.candidate), 1e-9)
		})
	}
}

func TestAcceptable(t *testing.T) {
	longQuery := []string{"mosteiro", "dos", "jeronimos", "belem"}
	shortQuery := []string{"belem"}

	assert.True(t, Acceptable(longQuery, 2))
	assert.False(t, Acceptable(longQuery, 1))
	assert.True(t, Acceptable(shortQuery, 1))
	assert.False(t, Acceptable(shortQuery, 0))
}

func TestSelectBest(t *testing.T) {
	query := []string{"castelo", "sao", "jorge"}

	t.Run("picks highest score", func(t *testing.T) {
		idx, score := SelectBest(query, [][]string{
			{"castelo", "guimaraes"},              // common=1, rejected
			{"castelo", "sao", "jorge", "lisboa"}, // common=3, penalty 1/2
			{"castelo", "sao", "jorge"},           // common=3, penalty 1
		})
		assert.Equal(t, 2, idx)
		assert.InDelta(t, 3.0, score, 1e-9)
	})

	t.Run("ties break to first seen", func(t *testing.T) {
		idx, _ := SelectBest(query, [][]string{
			{"castelo", "sao", "jorge"},
			{"jorge", "sao", "castelo"},
		})
		assert.Equal(t, 0, idx)
	})

	t.Run("no acceptable candidate", func(t *testing.T) {
		idx, score := SelectBest(query, [][]string{
			{"torre", "belem"},
			{"castelo"}, // common=1 but query has 3 tokens
		})
		assert.Equal(t, -1, idx)
		assert.Zero(t, score)
	})

	t.Run("short query leniency", func(t *testing.T) {
		idx, _ := SelectBest([]string{"miradouro"}, [][]string{
			{"miradouro", "graca"},
		})
		assert.Equal(t, 0, idx)
	})
}
