package domain

import (
	"fmt"
	"strings"
)

// ReviewCountFilter restricts candidates by how many reviews they have.
type ReviewCountFilter string

// Review count filter values. The zero value applies no restriction.
const (
	ReviewCountAny      ReviewCountFilter = ""
	ReviewCountMultiple ReviewCountFilter = "multiple"
	ReviewCountSingle   ReviewCountFilter = "single"
)

// ParseReviewCountFilter validates a review count filter value.
func ParseReviewCountFilter(s string) (ReviewCountFilter, error) {
	switch f := ReviewCountFilter(s); f {
	case ReviewCountAny, ReviewCountMultiple, ReviewCountSingle:
		return f, nil
	default:
		return "", fmt.Errorf("%w: review count %q", ErrInvalidFilter, s)
	}
}

// Filter selects a subset of candidates. All set fields must hold for a
// candidate to be kept; zero fields match everything.
type Filter struct {
	// Candidate keeps only the candidate with this exact canonical name.
	Candidate string `json:"candidate,omitempty"`

	// Search keeps candidates whose name, or any reviewer name, contains
	// the text case-insensitively.
	Search string `json:"search,omitempty"`

	// Recommendation keeps candidates with at least one review carrying
	// this code.
	Recommendation Recommendation `json:"recommendation,omitempty"`

	// ReviewCount keeps candidates by number of reviews.
	ReviewCount ReviewCountFilter `json:"reviewCount,omitempty"`
}

// IsZero reports whether the filter keeps every candidate.
func (f Filter) IsZero() bool { return f == Filter{} }

// Matches reports whether grp passes every predicate of f.
func (f Filter) Matches(grp CandidateGroup) bool {
	if f.Candidate != "" && grp.Name != f.Candidate {
		return false
	}
	if f.Search != "" && !matchesSearch(grp, strings.ToLower(f.Search)) {
		return false
	}
	if f.Recommendation != "" && !hasRecommendation(grp, f.Recommendation) {
		return false
	}
	switch f.ReviewCount {
	case ReviewCountMultiple:
		if len(grp.Reviews) <= 1 {
			return false
		}
	case ReviewCountSingle:
		if len(grp.Reviews) != 1 {
			return false
		}
	}
	return true
}

func matchesSearch(grp CandidateGroup, needle string) bool {
	if strings.Contains(strings.ToLower(grp.Name), needle) {
		return true
	}
	for _, r := range grp.Reviews {
		if strings.Contains(strings.ToLower(r.ReviewerName), needle) {
			return true
		}
	}
	return false
}

func hasRecommendation(grp CandidateGroup, code Recommendation) bool {
	for _, r := range grp.Reviews {
		if r.Recommendation == code {
			return true
		}
	}
	return false
}

// Filter returns the candidates that match f, keeping their order. The
// receiver is not modified.
func (g *GroupedReviews) Filter(f Filter) *GroupedReviews {
	out := newGroupedReviews(g.Len())
	if g == nil {
		return out
	}
	for _, grp := range g.groups {
		if !f.Matches(grp) {
			continue
		}
		out.index[grp.Name] = len(out.groups)
		out.groups = append(out.groups, grp)
	}
	return out
}
