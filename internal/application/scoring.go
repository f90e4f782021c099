package application

import (
	"fmt"

	"github.com/aphrc/proposal-review/internal/domain"
)

// NewAggregator builds the aggregator selected by cfg.
func NewAggregator(cfg ScoringConfig) (*domain.Aggregator, error) {
	profile, err := domain.ProfileFor(cfg.Schema)
	if err != nil {
		return nil, err
	}
	threshold := cfg.SimilarityThreshold
	if threshold == 0 {
		threshold = domain.DefaultSimilarityThreshold
	}
	matcher, err := domain.NewMatcher(cfg.Matcher, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate matcher: %w", err)
	}
	return domain.NewAggregator(matcher, domain.NewCalculator(profile)), nil
}

// AggregateRecords drops incomplete records and groups the rest.
func AggregateRecords(agg *domain.Aggregator, records []domain.RawRecord) *domain.GroupedReviews {
	complete := domain.CompleteRecords(records, agg.Calculator().Profile().Fields)
	return agg.Aggregate(complete)
}
