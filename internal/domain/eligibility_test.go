package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsComplete(t *testing.T) {
	f := LegacyProfile().Fields
	base := func() RawRecord {
		return legacyRecord("Jane Doe", "R1", [CriterionCount]string{"3"}, RecommendStrong, "21")
	}

	tests := []struct {
		name   string
		mutate func(RawRecord)
		want   bool
	}{
		{"complete", func(RawRecord) {}, true},
		{"missing recommendation", func(r RawRecord) { delete(r, f.Recommendation) }, false},
		{"blank reviewer", func(r RawRecord) { r[f.Reviewer] = "  " }, false},
		{"missing candidate", func(r RawRecord) { r[f.Candidate] = "" }, false},
		{"missing total", func(r RawRecord) { delete(r, f.Total) }, false},
		{"no criterion scores", func(r RawRecord) { r[f.Scores[Innovation]] = "" }, false},
		{"any criterion suffices", func(r RawRecord) {
			r[f.Scores[Innovation]] = ""
			r[f.Scores[ApplicantCV]] = "2"
		}, true},
		{"zero score counts as present", func(r RawRecord) { r[f.Scores[Innovation]] = "0" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base()
			tt.mutate(rec)
			assert.Equal(t, tt.want, IsComplete(rec, f))
		})
	}
}

func TestCompleteRecords(t *testing.T) {
	f := LegacyProfile().Fields
	good := legacyRecord("Jane Doe", "R1", threes, RecommendStrong, "21")
	bad := legacyRecord("John Smith", "R2", threes, "", "21")

	got := CompleteRecords([]RawRecord{bad, good, bad}, f)
	assert.Equal(t, []RawRecord{good}, got)
	assert.Empty(t, CompleteRecords(nil, f))
}
