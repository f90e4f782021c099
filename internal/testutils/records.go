// Package testutils provides record fixtures and in-memory fakes of the
// REDCap ports for service and handler tests.
package testutils

import (
	"strconv"

	"github.com/aphrc/proposal-review/internal/domain"
)

// LegacyReview describes one legacy marking sheet row.
type LegacyReview struct {
	RecordID       string
	Instance       int
	Candidate      string
	Reviewer       string
	Email          string
	Scores         [domain.CriterionCount]int
	Recommendation string
	Strength       string
	Improvement    string
}

// Record renders the review as the flat REDCap export would. The total
// is the sum of the raw scores.
func (r LegacyReview) Record() domain.RawRecord {
	f := domain.LegacyProfile().Fields
	rec := domain.RawRecord{
		domain.FieldRecordID:         r.RecordID,
		domain.FieldRepeatInstrument: "marking_sheet",
		domain.FieldRepeatInstance:   strconv.Itoa(r.Instance),
		f.Candidate:                  r.Candidate,
		f.Reviewer:                   r.Reviewer,
		f.ReviewerEmail:              r.Email,
		f.Recommendation:             r.Recommendation,
		f.Strength:                   r.Strength,
		f.Improvement:                r.Improvement,
		f.Complete:                   "2",
	}
	total := 0
	for i, s := range r.Scores {
		rec[f.Scores[i]] = strconv.Itoa(s)
		total += s
	}
	rec[f.Total] = strconv.Itoa(total)
	return rec
}

// Uniform returns a score array with every criterion set to v.
func Uniform(v int) [domain.CriterionCount]int {
	var s [domain.CriterionCount]int
	for i := range s {
		s[i] = v
	}
	return s
}

// SampleReviews returns four complete reviews of three candidates. Jane
// Doe appears twice under spelling variants.
func SampleReviews() []domain.RawRecord {
	return []domain.RawRecord{
		LegacyReview{RecordID: "1", Instance: 1, Candidate: "Jane Doe", Reviewer: "Dr. A", Email: "a@aphrc.org",
			Scores: Uniform(3), Recommendation: "1", Strength: "3", Improvement: "<p>None</p>"}.Record(),
		LegacyReview{RecordID: "2", Instance: 1, Candidate: "jane  doe", Reviewer: "Dr. B", Email: "b@aphrc.org",
			Scores: Uniform(2), Recommendation: "2", Strength: "2"}.Record(),
		LegacyReview{RecordID: "1", Instance: 2, Candidate: "John Smith", Reviewer: "Dr. A", Email: "a@aphrc.org",
			Scores: Uniform(1), Recommendation: "3", Strength: "1", Improvement: "Clarify &amp; focus"}.Record(),
		LegacyReview{RecordID: "2", Instance: 2, Candidate: "Amina Otieno", Reviewer: "Dr. B", Email: "b@aphrc.org",
			Scores: [domain.CriterionCount]int{3, 3, 2, 2, 2, 1, 3}, Recommendation: "2", Strength: "2"}.Record(),
	}
}

// Reviewer returns a reviewer_details row.
func Reviewer(recordID, name, email string, assigned string) domain.RawRecord {
	return domain.RawRecord{
		domain.FieldRecordID: recordID,
		"rev_name":           name,
		"rev_email":          email,
		"assigned_proposals": assigned,
	}
}
