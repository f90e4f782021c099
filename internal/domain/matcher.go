package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// CandidateMatcher resolves a candidate name against the canonical names
// seen so far. Resolve returns the canonical name to group under and
// whether an existing name was matched. When nothing matches the input is
// returned unchanged with matched=false.
type CandidateMatcher interface {
	Resolve(name string, known []string) (canonical string, matched bool)
}

// MatcherKind selects a CandidateMatcher implementation.
type MatcherKind string

// Available matchers.
const (
	MatcherGreedy     MatcherKind = "greedy"
	MatcherSimilarity MatcherKind = "similarity"
)

// DefaultSimilarityThreshold is used when a similarity matcher is built
// without an explicit threshold.
const DefaultSimilarityThreshold = 0.85

// NewMatcher builds the matcher named by kind. The threshold only applies
// to MatcherSimilarity.
func NewMatcher(kind MatcherKind, threshold float64) (CandidateMatcher, error) {
	switch kind {
	case MatcherGreedy, "":
		return GreedyTokenMatcher{}, nil
	case MatcherSimilarity:
		return NewSimilarityMatcher(threshold)
	default:
		return nil, fmt.Errorf("%w: unknown matcher %q", ErrInvalidConfiguration, kind)
	}
}

// GreedyTokenMatcher matches on exact normalized equality first, then on
// partial token overlap. The first known name that satisfies either test
// wins, so results depend on the order names were first seen.
type GreedyTokenMatcher struct{}

// fuzzyTokenRatio is the share of the shorter name's tokens that must
// overlap for a token match.
const fuzzyTokenRatio = 0.6

// Resolve implements CandidateMatcher.
func (GreedyTokenMatcher) Resolve(name string, known []string) (string, bool) {
	if name == "" {
		return "", false
	}

	normalized := NormalizeName(name)
	for _, existing := range known {
		if NormalizeName(existing) == normalized {
			return existing, true
		}
	}

	words := nameTokens(normalized)
	if len(words) < 2 {
		return name, false
	}

	for _, existing := range known {
		existingWords := nameTokens(NormalizeName(existing))
		count := 0
		for _, w := range words {
			if tokenOverlaps(w, existingWords) {
				count++
			}
		}

		shorter := min(len(words), len(existingWords))
		if count >= 2 || count >= int(math.Ceil(float64(shorter)*fuzzyTokenRatio)) {
			return existing, true
		}
	}

	return name, false
}

// tokenOverlaps reports whether w equals, contains or is contained in any
// of the candidate tokens.
func tokenOverlaps(w string, tokens []string) bool {
	for _, t := range tokens {
		if t == w || strings.Contains(t, w) || strings.Contains(w, t) {
			return true
		}
	}
	return false
}

// SimilarityMatcher matches on Levenshtein similarity of the normalized
// names. The best scoring known name at or above Threshold wins; ties go
// to the name seen first.
type SimilarityMatcher struct {
	Threshold float64
}

// NewSimilarityMatcher returns a SimilarityMatcher. A zero threshold
// selects DefaultSimilarityThreshold.
func NewSimilarityMatcher(threshold float64) (*SimilarityMatcher, error) {
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: similarity threshold %v outside [0,1]", ErrInvalidConfiguration, threshold)
	}
	return &SimilarityMatcher{Threshold: threshold}, nil
}

// Resolve implements CandidateMatcher.
func (m *SimilarityMatcher) Resolve(name string, known []string) (string, bool) {
	if name == "" {
		return "", false
	}

	target := foldName(name)
	best, bestScore := "", -1.0
	for _, existing := range known {
		score := similarity(target, foldName(existing))
		if score > bestScore {
			best, bestScore = existing, score
		}
	}

	if bestScore >= m.Threshold {
		return best, true
	}
	return name, false
}

func foldName(name string) string {
	// Caser values carry state, so one is built per call.
	return NormalizeName(cases.Fold().String(name))
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	s := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if s < 0 {
		return 0
	}
	return s
}
