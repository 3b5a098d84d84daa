package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChooseSearchResult(t *testing.T) {
	titles := []string{"Anime Girl", "Anime Girl V2", "Realistic Portrait"}

	tests := []struct {
		name      string
		target    string
		titles    []string
		wantIndex int
		wantKind  matchKind
	}{
		{
			name:      "exact match wins over similar candidates",
			target:    "Anime Girl V2",
			titles:    titles,
			wantIndex: 1,
			wantKind:  matchExact,
		},
		{
			name:      "exact match is case insensitive",
			target:    "anime girl v2",
			titles:    titles,
			wantIndex: 1,
			wantKind:  matchExact,
		},
		{
			name:      "typo falls back to best fuzzy candidate",
			target:    "Animee Girl",
			titles:    titles,
			wantIndex: 0,
			wantKind:  matchFuzzy,
		},
		{
			name:      "unrelated target falls back to first result",
			target:    "zzzzzzzz",
			titles:    titles,
			wantIndex: 0,
			wantKind:  matchFirst,
		},
		{
			name:      "empty list yields no selection",
			target:    "anything",
			titles:    nil,
			wantIndex: -1,
			wantKind:  matchNone,
		},
		{
			name:      "surrounding whitespace is ignored",
			target:    "  Anime Girl  ",
			titles:    []string{" Anime Girl "},
			wantIndex: 0,
			wantKind:  matchExact,
		},
		{
			name:      "blank titles are skipped for matching",
			target:    "Anime Girl",
			titles:    []string{"", "Anime Girl"},
			wantIndex: 1,
			wantKind:  matchExact,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, kind := chooseSearchResult(tt.target, tt.titles, DefaultFuzzyThreshold)
			assert.Equal(t, tt.wantIndex, index)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical strings", "anime girl", "anime girl", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "anime", "", 0.0},
		{"disjoint strings", "abc", "xyz", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, similarityRatio(tt.a, tt.b), 1e-9)
		})
	}

	t.Run("typo stays above the acceptance threshold", func(t *testing.T) {
		score := similarityRatio("animee girl", "anime girl")
		assert.Greater(t, score, DefaultFuzzyThreshold)
	})

	t.Run("shared prefix scores higher than unrelated text", func(t *testing.T) {
		near := similarityRatio("anime girl v2", "anime girl")
		far := similarityRatio("realistic portrait", "anime girl")
		assert.Greater(t, near, far)
	})

	t.Run("symmetric in its arguments", func(t *testing.T) {
		assert.InDelta(t,
			similarityRatio("anime girl", "animee girl"),
			similarityRatio("animee girl", "anime girl"), 1e-9)
	})
}

func TestMatchKindString(t *testing.T) {
	assert.Equal(t, "exact", matchExact.String())
	assert.Equal(t, "fuzzy", matchFuzzy.String())
	assert.Equal(t, "first", matchFirst.String())
	assert.Equal(t, "none", matchNone.String())
}
