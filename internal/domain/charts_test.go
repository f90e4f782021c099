package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreBin(t *testing.T) {
	tests := []struct {
		total float64
		want  string
	}{
		{0, "0-7"},
		{7, "0-7"},
		{7.5, "8-14"},
		{8, "8-14"},
		{14, "8-14"},
		{15, "15-18"},
		{18, "15-18"},
		{19, "19-21"},
		{21, "19-21"},
		{99, "19-21"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScoreBin(tt.total), "total %v", tt.total)
	}
}

func TestGroupedReviews_ScoreDistribution(t *testing.T) {
	g := newLegacyAggregator().Aggregate([]RawRecord{
		legacyRecord("A B", "R1", threes, RecommendStrong, "7"),
		legacyRecord("C D", "R2", threes, RecommendStrong, "8"),
		legacyRecord("E F", "R3", threes, RecommendStrong, "20"),
	})

	assert.Equal(t, []ChartPoint{
		{Name: "0-7", Value: 1},
		{Name: "8-14", Value: 1},
		{Name: "15-18", Value: 0},
		{Name: "19-21", Value: 1},
	}, g.ScoreDistribution())

	assert.Len(t, EmptyGrouping().ScoreDistribution(), 4)
}

func TestGroupedReviews_RecommendationBreakdown(t *testing.T) {
	g := newLegacyAggregator().Aggregate([]RawRecord{
		legacyRecord("A B", "R1", threes, RecommendNot, "7"),
		legacyRecord("C D", "R2", threes, RecommendStrong, "8"),
		legacyRecord("E F", "R3", threes, RecommendNot, "20"),
	})

	assert.Equal(t, []ChartPoint{
		{Name: "Do Not Recommend", Value: 2},
		{Name: "Strongly Recommend", Value: 1},
	}, g.RecommendationBreakdown())

	assert.Empty(t, EmptyGrouping().RecommendationBreakdown())
}

func TestGroupedReviews_RecommendationBreakdownSkipsUnknownCodes(t *testing.T) {
	g := newLegacyAggregator().Aggregate([]RawRecord{
		legacyRecord("A B", "R1", threes, Recommendation("4"), "7"),
		legacyRecord("C D", "R2", threes, RecommendStrong, "8"),
		legacyRecord("E F", "R3", threes, Recommendation("x"), "20"),
	})

	assert.Equal(t, []ChartPoint{{Name: "Strongly Recommend", Value: 1}}, g.RecommendationBreakdown())
}
