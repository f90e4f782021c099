package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Placeholders substituted for missing identity fields.
const (
	UnknownCandidate = "Unknown Candidate"
	UnknownReviewer  = "Unknown Reviewer"
)

// ScoredReview is a record enriched with parsed scores and percentages.
// It is immutable once returned by the Calculator.
type ScoredReview struct {
	RecordID       string `json:"recordId"`
	RepeatInstance string `json:"repeatInstance,omitempty"`
	CandidateName  string `json:"candidateName"`
	ReviewerName   string `json:"reviewerName"`
	ReviewerEmail  string `json:"reviewerEmail"`
	ReviewDate     string `json:"reviewDate"`

	Scores      CriterionValues `json:"scores"`
	Percentages CriterionValues `json:"percentages"`

	TotalScore    float64 `json:"totalScore"`
	TotalScorePct float64 `json:"totalScorePct"`

	Recommendation      Recommendation `json:"finalRecommendation"`
	ProposalStrength    string         `json:"proposalStrength"`
	AreasForImprovement string         `json:"areasForImprovement"`
}

// CriterionValues holds one value per criterion, indexed by Criterion.
// It encodes to JSON as an object keyed by criterion name.
type CriterionValues [CriterionCount]float64

// MarshalJSON implements json.Marshaler, keeping marking sheet order.
func (v CriterionValues) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 160)
	buf = append(buf, '{')
	for i, val := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, Criterion(i).String())
		buf = append(buf, ':')
		buf = strconv.AppendFloat(buf, val, 'f', -1, 64)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON implements json.Unmarshaler. Missing criteria stay 0 and
// unknown keys are rejected.
func (v *CriterionValues) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out CriterionValues
	for key, val := range m {
		c, ok := criterionByKey(key)
		if !ok {
			return fmt.Errorf("unknown criterion %q", key)
		}
		out[c] = val
	}
	*v = out
	return nil
}

func criterionByKey(key string) (Criterion, bool) {
	for i, k := range criterionKeys {
		if k == key {
			return Criterion(i), true
		}
	}
	return 0, false
}

// Score returns the raw score for c.
func (r ScoredReview) Score(c Criterion) float64 { return r.Scores[c] }

// Percentage returns the percentage for c.
func (r ScoredReview) Percentage(c Criterion) float64 { return r.Percentages[c] }

// ResearchSubtotal is the sum of the first six raw criterion scores.
func (r ScoredReview) ResearchSubtotal() float64 {
	var sum float64
	for i := 0; i < researchCriteria; i++ {
		sum += r.Scores[i]
	}
	return sum
}

// Calculator derives percentages from raw criterion scores.
type Calculator struct {
	profile Profile
}

// NewCalculator returns a Calculator for the given profile.
func NewCalculator(profile Profile) *Calculator {
	return &Calculator{profile: profile}
}

// Profile returns the profile the calculator scores against.
func (c *Calculator) Profile() Profile { return c.profile }

// Score parses rec and computes every percentage. It never fails: fields
// that do not parse as numbers count as 0.
func (c *Calculator) Score(rec RawRecord) ScoredReview {
	f := c.profile.Fields

	review := ScoredReview{
		RecordID:            rec.Get(FieldRecordID),
		RepeatInstance:      rec.Get(FieldRepeatInstance),
		CandidateName:       rec.Get(f.Candidate),
		ReviewerName:        rec.Get(f.Reviewer),
		ReviewerEmail:       rec.Get(f.ReviewerEmail),
		ReviewDate:          rec.Get(f.ReviewDate),
		TotalScore:          ParseFloat(rec.Get(f.Total)),
		Recommendation:      Recommendation(rec.Get(f.Recommendation)),
		ProposalStrength:    rec.Get(f.Strength),
		AreasForImprovement: rec.Get(f.Improvement),
	}
	if review.ReviewerName == "" {
		review.ReviewerName = UnknownReviewer
	}

	for i := range review.Scores {
		review.Scores[i] = ParseFloat(rec.Get(f.Scores[i]))
		review.Percentages[i] = c.CriterionPercentage(Criterion(i), review.Scores[i], rec.Get(f.Percentages[i]))
	}
	review.TotalScorePct = c.OverallPercentage(review.Scores, rec.Get(f.Summary))

	return review
}

// CriterionPercentage returns the provided percentage, rounded, when it
// parses as a number, including "0". Otherwise it falls back to
// round(raw/max*100).
func (c *Calculator) CriterionPercentage(cr Criterion, raw float64, provided string) float64 {
	if v, ok := parseNumber(provided); ok {
		return math.Round(v)
	}
	return c.Percentage(cr, raw)
}

// Percentage is the fallback percentage of raw against the criterion
// maximum, rounded to a whole number.
func (c *Calculator) Percentage(cr Criterion, raw float64) float64 {
	maximum := c.profile.Scale.Maxima[cr]
	if maximum <= 0 {
		return 0
	}
	return math.Round(raw / maximum * 100)
}

// OverallPercentage returns round(summary) when summary parses to a
// positive number, and otherwise the weighted sum of the raw scores times
// the scale multiplier, rounded.
func (c *Calculator) OverallPercentage(raw CriterionValues, summary string) float64 {
	if v := ParseFloat(summary); v > 0 {
		return math.Round(v)
	}
	var sum float64
	for i, w := range c.profile.Scale.Weights {
		sum += raw[i] * w
	}
	return math.Round(sum * c.profile.Scale.Multiplier)
}

// numericPrefix matches the longest leading decimal literal, mirroring
// how browsers parse form values.
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseFloat parses the leading numeric prefix of s after trimming leading
// whitespace. Anything without a numeric prefix yields 0.
func ParseFloat(s string) float64 {
	v, _ := parseNumber(s)
	return v
}

func parseNumber(s string) (float64, bool) {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	m := numericPrefix.FindString(s[i:])
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// Only overflow reaches here; the prefix is otherwise well formed.
		return 0, false
	}
	return v, true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 { return math.Round(v*10) / 10 }
