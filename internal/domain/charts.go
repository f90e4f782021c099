package domain

// ChartPoint is one labelled bar of a chart.
type ChartPoint struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// scoreBin is an inclusive upper bound on the raw total. The last bin
// catches everything above the previous bound.
type scoreBin struct {
	label string
	upper float64
}

var scoreBins = []scoreBin{
	{"0-7", 7},
	{"8-14", 14},
	{"15-18", 18},
	{"19-21", 0},
}

// ScoreBin returns the distribution label for a raw total.
func ScoreBin(total float64) string {
	for _, b := range scoreBins[:len(scoreBins)-1] {
		if total <= b.upper {
			return b.label
		}
	}
	return scoreBins[len(scoreBins)-1].label
}

// ScoreDistribution counts reviews per raw total bin. Every bin is
// returned, in ascending order, even when empty.
func (g *GroupedReviews) ScoreDistribution() []ChartPoint {
	points := make([]ChartPoint, len(scoreBins))
	pos := make(map[string]int, len(scoreBins))
	for i, b := range scoreBins {
		points[i] = ChartPoint{Name: b.label}
		pos[b.label] = i
	}
	if g == nil {
		return points
	}
	for _, grp := range g.groups {
		for _, r := range grp.Reviews {
			points[pos[ScoreBin(r.TotalScore)]].Value++
		}
	}
	return points
}

// RecommendationBreakdown counts reviews per recommendation label in the
// order labels are first seen. Codes outside the three known ones are not
// counted, and labels with no reviews are omitted.
func (g *GroupedReviews) RecommendationBreakdown() []ChartPoint {
	var points []ChartPoint
	if g == nil {
		return points
	}
	pos := make(map[string]int, 4)
	for _, grp := range g.groups {
		for _, r := range grp.Reviews {
			if !r.Recommendation.Valid() {
				continue
			}
			label := r.Recommendation.Label()
			i, ok := pos[label]
			if !ok {
				i = len(points)
				pos[label] = i
				points = append(points, ChartPoint{Name: label})
			}
			points[i].Value++
		}
	}
	return points
}
