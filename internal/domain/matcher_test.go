package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreedyTokenMatcher_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		known       []string
		wantName    string
		wantMatched bool
	}{
		{
			name:     "empty input",
			input:    "",
			known:    []string{"Jane Doe"},
			wantName: "",
		},
		{
			name:     "no known names",
			input:    "Jane Doe",
			wantName: "Jane Doe",
		},
		{
			name:        "exact after normalization",
			input:       "amina yusuf ",
			known:       []string{"Amina Yusuf"},
			wantName:    "Amina Yusuf",
			wantMatched: true,
		},
		{
			name:        "exact match preferred over earlier token match",
			input:       "Mary Achieng",
			known:       []string{"Mary Ochieng", "Mary Achieng"},
			wantName:    "Mary Achieng",
			wantMatched: true,
		},
		{
			name:        "extra middle name",
			input:       "Jane Wanjiru Doe",
			known:       []string{"Jane Doe"},
			wantName:    "Jane Doe",
			wantMatched: true,
		},
		{
			name:        "substring tokens count as overlap",
			input:       "Ann Lee",
			known:       []string{"Joanne Leeds"},
			wantName:    "Joanne Leeds",
			wantMatched: true,
		},
		{
			name:        "ratio against shorter name",
			input:       "Kim Lee",
			known:       []string{"Kim"},
			wantName:    "Kim",
			wantMatched: true,
		},
		{
			name:     "single token input skips token pass",
			input:    "Jane",
			known:    []string{"Jane Doe"},
			wantName: "Jane",
		},
		{
			name:     "unrelated names",
			input:    "John Smith",
			known:    []string{"Jane Doe"},
			wantName: "John Smith",
		},
		{
			name:        "first token match wins",
			input:       "Peter Otieno Kamau",
			known:       []string{"Peter Otieno", "Peter Kamau"},
			wantName:    "Peter Otieno",
			wantMatched: true,
		},
	}

	var m GreedyTokenMatcher
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := m.Resolve(tt.input, tt.known)
			assert.Equal(t, tt.wantName, got)
			assert.Equal(t, tt.wantMatched, matched)
		})
	}
}

func TestSimilarityMatcher_Resolve(t *testing.T) {
	m, err := NewSimilarityMatcher(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSimilarityThreshold, m.Threshold)

	t.Run("close spelling", func(t *testing.T) {
		got, matched := m.Resolve("Jane Does", []string{"Jane Doe"})
		assert.True(t, matched)
		assert.Equal(t, "Jane Doe", got)
	})

	t.Run("case and punctuation folded", func(t *testing.T) {
		got, matched := m.Resolve("JANE DOE.", []string{"jane doe"})
		assert.True(t, matched)
		assert.Equal(t, "jane doe", got)
	})

	t.Run("shared first name is not enough", func(t *testing.T) {
		got, matched := m.Resolve("Jane Smith", []string{"Jane Doe"})
		assert.False(t, matched)
		assert.Equal(t, "Jane Smith", got)
	})

	t.Run("best score wins", func(t *testing.T) {
		got, matched := m.Resolve("Mary Achieng", []string{"Mary Ochieng", "Mary Achieng"})
		assert.True(t, matched)
		assert.Equal(t, "Mary Achieng", got)
	})

	t.Run("ties go to the earliest name", func(t *testing.T) {
		got, matched := m.Resolve("Jxn Doe", []string{"Jon Doe", "Jan Doe"})
		assert.True(t, matched)
		assert.Equal(t, "Jon Doe", got)
	})

	t.Run("empty input", func(t *testing.T) {
		got, matched := m.Resolve("", []string{"Jane Doe"})
		assert.False(t, matched)
		assert.Empty(t, got)
	})
}

func TestNewMatcher(t *testing.T) {
	m, err := NewMatcher("", 0)
	require.NoError(t, err)
	assert.IsType(t, GreedyTokenMatcher{}, m)

	m, err = NewMatcher(MatcherSimilarity, 0.9)
	require.NoError(t, err)
	require.IsType(t, &SimilarityMatcher{}, m)
	assert.Equal(t, 0.9, m.(*SimilarityMatcher).Threshold)

	_, err = NewMatcher(MatcherSimilarity, 1.5)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewMatcher("soundex", 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
