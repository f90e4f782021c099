package domain

// CandidateGroup is one canonical candidate with its reviews in fetch
// order.
type CandidateGroup struct {
	Name    string         `json:"name"`
	Reviews []ScoredReview `json:"reviews"`
}

// GroupedReviews maps canonical candidates to their reviews. Candidates
// keep first-seen order. A GroupedReviews is never modified after it is
// built; filtering returns a new value.
type GroupedReviews struct {
	groups []CandidateGroup
	index  map[string]int
}

func newGroupedReviews(capacity int) *GroupedReviews {
	return &GroupedReviews{
		groups: make([]CandidateGroup, 0, capacity),
		index:  make(map[string]int, capacity),
	}
}

// EmptyGrouping returns a grouping with no candidates.
func EmptyGrouping() *GroupedReviews { return newGroupedReviews(0) }

func (g *GroupedReviews) add(name string, review ScoredReview) {
	i, ok := g.index[name]
	if !ok {
		i = len(g.groups)
		g.index[name] = i
		g.groups = append(g.groups, CandidateGroup{Name: name})
	}
	g.groups[i].Reviews = append(g.groups[i].Reviews, review)
}

// Len returns the number of candidates.
func (g *GroupedReviews) Len() int {
	if g == nil {
		return 0
	}
	return len(g.groups)
}

// Empty reports whether the grouping has no candidates.
func (g *GroupedReviews) Empty() bool { return g.Len() == 0 }

// Candidates returns the groups in first-seen order. The returned slice is
// a copy; the reviews inside it must not be modified.
func (g *GroupedReviews) Candidates() []CandidateGroup {
	if g == nil {
		return nil
	}
	out := make([]CandidateGroup, len(g.groups))
	copy(out, g.groups)
	return out
}

// Names returns the canonical candidate names in first-seen order.
func (g *GroupedReviews) Names() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.groups))
	for i, grp := range g.groups {
		out[i] = grp.Name
	}
	return out
}

// Lookup returns the group for a canonical name.
func (g *GroupedReviews) Lookup(name string) (CandidateGroup, bool) {
	if g == nil {
		return CandidateGroup{}, false
	}
	i, ok := g.index[name]
	if !ok {
		return CandidateGroup{}, false
	}
	return g.groups[i], true
}

// ReviewCount returns the total number of reviews across candidates.
func (g *GroupedReviews) ReviewCount() int {
	n := 0
	if g == nil {
		return n
	}
	for _, grp := range g.groups {
		n += len(grp.Reviews)
	}
	return n
}

// Aggregator groups scored records by resolved candidate identity.
type Aggregator struct {
	matcher    CandidateMatcher
	calculator *Calculator
}

// NewAggregator returns an Aggregator. A nil matcher selects
// GreedyTokenMatcher.
func NewAggregator(matcher CandidateMatcher, calculator *Calculator) *Aggregator {
	if matcher == nil {
		matcher = GreedyTokenMatcher{}
	}
	return &Aggregator{matcher: matcher, calculator: calculator}
}

// Calculator returns the calculator used to score records.
func (a *Aggregator) Calculator() *Calculator { return a.calculator }

// Aggregate scores every record and groups it under its canonical
// candidate, processing records in input order. Records with an empty
// candidate name are grouped under UnknownCandidate.
func (a *Aggregator) Aggregate(records []RawRecord) *GroupedReviews {
	grouped := newGroupedReviews(len(records))
	known := make([]string, 0, len(records))
	candidateField := a.calculator.Profile().Fields.Candidate

	for _, rec := range records {
		name := rec.Get(candidateField)
		if name == "" {
			name = UnknownCandidate
		}

		canonical, matched := a.matcher.Resolve(name, known)
		if !matched || canonical == name {
			canonical = name
			if _, seen := grouped.index[name]; !seen {
				known = append(known, name)
			}
		}

		grouped.add(canonical, a.calculator.Score(rec))
	}

	return grouped
}

// Summary holds headline statistics over a grouping.
type Summary struct {
	TotalCandidates     int     `json:"totalCandidates"`
	TotalReviews        int     `json:"totalReviews"`
	StronglyRecommended int     `json:"stronglyRecommended"`
	Recommended         int     `json:"recommended"`
	NotRecommended      int     `json:"notRecommended"`
	AverageScore        float64 `json:"averageScore"`
	MultipleReviews     int     `json:"candidatesWithMultipleReviews"`
}

// Summary computes statistics over every review in the grouping. The
// average raw total is rounded to one decimal and is 0 with no reviews.
func (g *GroupedReviews) Summary() Summary {
	var (
		s     Summary
		total float64
	)
	if g == nil {
		return s
	}

	s.TotalCandidates = len(g.groups)
	for _, grp := range g.groups {
		if len(grp.Reviews) > 1 {
			s.MultipleReviews++
		}
		for _, r := range grp.Reviews {
			s.TotalReviews++
			total += r.TotalScore
			switch r.Recommendation {
			case RecommendStrong:
				s.StronglyRecommended++
			case RecommendRegular:
				s.Recommended++
			case RecommendNot:
				s.NotRecommended++
			}
		}
	}
	if s.TotalReviews > 0 {
		s.AverageScore = Round1(total / float64(s.TotalReviews))
	}
	return s
}
