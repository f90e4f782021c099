package domain

import "fmt"

// Schema names a marking sheet layout.
type Schema string

// Supported marking sheet layouts.
const (
	// SchemaLegacy is the original 1-3 scale sheet whose overall
	// percentage is computed with the REDCap weighting formula.
	SchemaLegacy Schema = "legacy"

	// SchemaRevised is the 100 point sheet where each criterion carries
	// its own maximum.
	SchemaRevised Schema = "revised"
)

// FieldMap locates the semantic fields of a RawRecord.
// An empty field name means the layout does not carry that value.
type FieldMap struct {
	Candidate      string
	Reviewer       string
	ReviewerEmail  string
	ReviewDate     string
	Scores         [CriterionCount]string
	Percentages    [CriterionCount]string
	Summary        string
	Recommendation string
	Total          string
	Strength       string
	Improvement    string
	Complete       string

	// NumericStrength is set when the strength field holds a score rather
	// than free text.
	NumericStrength bool
}

// Scale holds the maxima and weights used by the Calculator.
type Scale struct {
	Maxima     [CriterionCount]float64
	Weights    [CriterionCount]float64
	Multiplier float64
}

// Profile pairs a field layout with the scale used to score it.
type Profile struct {
	Schema Schema
	Fields FieldMap
	Scale  Scale
}

// REDCap bookkeeping fields shared by every layout.
const (
	FieldRecordID         = "record_id"
	FieldRepeatInstrument = "redcap_repeat_instrument"
	FieldRepeatInstance   = "redcap_repeat_instance"
)

// LegacyProfile returns the layout of the 1-3 scale marking sheet.
func LegacyProfile() Profile {
	return Profile{
		Schema: SchemaLegacy,
		Fields: FieldMap{
			Candidate:     "candidate_names",
			Reviewer:      "reviewer_name",
			ReviewerEmail: "reviewer_email",
			ReviewDate:    "review_date",
			Scores: [CriterionCount]string{
				"bg_problem_clarity",
				"bg_justification",
				"bg_literature",
				"bg_rationale",
				"diversity",
				"collab",
				"applicant_cv",
			},
			Percentages: [CriterionCount]string{
				"innovation_and_originality",
				"relevance",
				"feasibility",
				"app_potential",
				"diversity_inclusion",
				"diversity_inclusion_2",
				"cv_applicant",
			},
			Summary:         "summary",
			Recommendation:  "final_recommendation1",
			Total:           "format_total",
			Strength:        "strength_of_the_proposal1",
			Improvement:     "areas_for_improvement1",
			Complete:        "marking_sheet_complete",
			NumericStrength: true,
		},
		Scale: Scale{
			Maxima:     [CriterionCount]float64{3, 3, 3, 3, 3, 3, 3},
			Weights:    [CriterionCount]float64{0.23, 0.18, 0.18, 0.13, 0.09, 0.09, 0.10},
			Multiplier: 33.33,
		},
	}
}

// RevisedProfile returns the layout of the 100 point marking sheet.
func RevisedProfile() Profile {
	return Profile{
		Schema: SchemaRevised,
		Fields: FieldMap{
			Candidate:     "candidate_names",
			Reviewer:      "reviewer_name",
			ReviewerEmail: "reviewer_email",
			ReviewDate:    "review_date",
			Scores: [CriterionCount]string{
				"innovation_originality",
				"relevance",
				"feasibility",
				"applicant_potential",
				"diversity_inclusion",
				"collaboration",
				"applicant_cv",
			},
			Summary:        "summary",
			Recommendation: "final_recommendation",
			Total:          "format_total",
			Strength:       "strength_of_proposal",
			Improvement:    "areas_for_improvement",
			Complete:       "marking_sheet_complete",
		},
		Scale: Scale{
			Maxima:     [CriterionCount]float64{23, 18, 18, 13, 9, 9, 10},
			Weights:    [CriterionCount]float64{1, 1, 1, 1, 1, 1, 1},
			Multiplier: 1,
		},
	}
}

// ProfileFor returns the profile registered for schema.
func ProfileFor(schema Schema) (Profile, error) {
	switch schema {
	case SchemaLegacy, "":
		return LegacyProfile(), nil
	case SchemaRevised:
		return RevisedProfile(), nil
	default:
		return Profile{}, fmt.Errorf("%w: unknown schema %q", ErrInvalidConfiguration, schema)
	}
}
