// Package domain contains the review aggregation and scoring engine.
// Everything in this package is pure: it transforms records exported from
// REDCap into scored, grouped reviews without performing any I/O.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RawRecord is a single flat record as exported by REDCap.
// Every value is kept as a string; missing keys read as the empty string.
type RawRecord map[string]string

// Get returns the value stored under field, or "" when absent.
func (r RawRecord) Get(field string) string {
	if r == nil || field == "" {
		return ""
	}
	return r[field]
}

// Has reports whether field holds a non-blank value.
func (r RawRecord) Has(field string) bool {
	return !isBlank(r.Get(field))
}

// UnmarshalJSON accepts the loosely typed values REDCap emits.
// Strings are taken as-is, numbers and booleans are stringified, and null
// becomes the empty string. Nested values are kept as their JSON text.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	out := make(RawRecord, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return fmt.Errorf("encode field %s: %w", k, err)
			}
			out[k] = string(b)
		}
	}
	*r = out
	return nil
}

// Criterion identifies one of the seven scored review criteria.
type Criterion int

// Criteria in marking sheet order. The first six make up the research
// subtotal.
const (
	Innovation Criterion = iota
	Relevance
	Feasibility
	ApplicantPotential
	DiversityInclusion
	Collaboration
	ApplicantCV
)

// CriterionCount is the number of scored criteria.
const CriterionCount = 7

// researchCriteria is the number of leading criteria summed into the
// research subtotal.
const researchCriteria = 6

var criterionKeys = [CriterionCount]string{
	"innovation",
	"relevance",
	"feasibility",
	"applicant_potential",
	"diversity_inclusion",
	"collaboration",
	"applicant_cv",
}

var criterionLabels = [CriterionCount]string{
	"Innovation & Originality",
	"Relevance",
	"Feasibility",
	"Applicant Potential",
	"Diversity & Inclusion",
	"Collaboration",
	"Applicant CV",
}

// Criteria returns all criteria in marking sheet order.
func Criteria() []Criterion {
	out := make([]Criterion, CriterionCount)
	for i := range out {
		out[i] = Criterion(i)
	}
	return out
}

// String returns the stable machine key of the criterion.
func (c Criterion) String() string {
	if c < 0 || int(c) >= CriterionCount {
		return "unknown"
	}
	return criterionKeys[c]
}

// Label returns the human readable criterion name.
func (c Criterion) Label() string {
	if c < 0 || int(c) >= CriterionCount {
		return "Unknown"
	}
	return criterionLabels[c]
}

// Recommendation is the reviewer's final recommendation code.
type Recommendation string

// Recommendation codes as stored by the marking sheet.
const (
	RecommendStrong  Recommendation = "1"
	RecommendRegular Recommendation = "2"
	RecommendNot     Recommendation = "3"
)

// Label returns the display text for the code. Unknown and empty codes map
// to "Not Specified".
func (r Recommendation) Label() string {
	switch r {
	case RecommendStrong:
		return "Strongly Recommend"
	case RecommendRegular:
		return "Recommend"
	case RecommendNot:
		return "Do Not Recommend"
	default:
		return "Not Specified"
	}
}

// Valid reports whether r is one of the three known codes.
func (r Recommendation) Valid() bool {
	return r == RecommendStrong || r == RecommendRegular || r == RecommendNot
}

// ParseRecommendation maps filter values ("strong", "regular", "not" or the
// raw codes) to a Recommendation. The empty string yields "" with no error.
func ParseRecommendation(s string) (Recommendation, error) {
	switch s {
	case "":
		return "", nil
	case "strong", string(RecommendStrong):
		return RecommendStrong, nil
	case "regular", string(RecommendRegular):
		return RecommendRegular, nil
	case "not", string(RecommendNot):
		return RecommendNot, nil
	default:
		return "", fmt.Errorf("%w: recommendation %q", ErrInvalidFilter, s)
	}
}
