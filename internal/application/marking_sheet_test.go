package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/testutils"
)

func newReviewerFake() *testutils.FakeREDCap {
	pending := testutils.LegacyReview{
		RecordID: "1", Instance: 3, Candidate: "Peter Pan", Reviewer: "Dr. A", Email: "a@aphrc.org",
		Scores: testutils.Uniform(1), Recommendation: "2",
	}.Record()
	pending["marking_sheet_complete"] = "0"

	return &testutils.FakeREDCap{
		Records: append(testutils.SampleReviews(), pending),
		Reviewers: []domain.RawRecord{
			testutils.Reviewer("1", "Dr. A", "a@aphrc.org", "Jane Doe, John Smith,, Peter Pan "),
			testutils.Reviewer("2", "Dr. B", "b@aphrc.org", "Amina Otieno"),
		},
	}
}

func newMarkingSheetService(t *testing.T, fake *testutils.FakeREDCap, profile domain.Profile) *MarkingSheetService {
	t.Helper()
	svc, err := NewMarkingSheetService(fake, fake, profile, InstrumentConfig{})
	require.NoError(t, err)
	return svc
}

func TestMarkingSheetService_LookupReviewer(t *testing.T) {
	fake := newReviewerFake()
	svc := newMarkingSheetService(t, fake, domain.LegacyProfile())
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		r, err := svc.LookupReviewer(ctx, " a@aphrc.org ")
		require.NoError(t, err)

		assert.Equal(t, &Reviewer{
			RecordID: "1",
			Name:     "Dr. A",
			Email:    "a@aphrc.org",
			Assigned: []string{"Jane Doe", "John Smith", "Peter Pan"},
		}, r)

		last := fake.ExportCalls[len(fake.ExportCalls)-1]
		assert.Equal(t, []string{DefaultReviewerDetails}, last.Forms)
		assert.Equal(t, `[rev_email]="a@aphrc.org"`, last.FilterLogic)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.LookupReviewer(ctx, "nobody@aphrc.org")
		assert.ErrorIs(t, err, ErrReviewerNotFound)
	})

	t.Run("not an email", func(t *testing.T) {
		calls := fake.ExportCount()
		_, err := svc.LookupReviewer(ctx, "dr-a")
		assert.ErrorIs(t, err, domain.ErrEmptyValue)
		assert.Equal(t, calls, fake.ExportCount())
	})

	t.Run("quotes are dropped from the filter", func(t *testing.T) {
		_, err := svc.LookupReviewer(ctx, `a"@aphrc.org`)
		require.NoError(t, err)
		assert.Equal(t, `[rev_email]="a@aphrc.org"`, fake.ExportCalls[len(fake.ExportCalls)-1].FilterLogic)
	})

	t.Run("export failure", func(t *testing.T) {
		failing := &testutils.FakeREDCap{ExportErr: errors.New("timeout")}
		_, err := newMarkingSheetService(t, failing, domain.LegacyProfile()).LookupReviewer(ctx, "a@aphrc.org")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to fetch reviewer details")
	})
}

func TestMarkingSheetService_Profile(t *testing.T) {
	svc := newMarkingSheetService(t, newReviewerFake(), domain.LegacyProfile())

	p, err := svc.Profile(context.Background(), "a@aphrc.org")
	require.NoError(t, err)

	require.Len(t, p.Reviews, 2)
	assert.Equal(t, "Jane Doe", p.Reviews[0].CandidateName)
	assert.Equal(t, 100.0, p.Reviews[0].TotalScorePct)
	assert.Equal(t, "John Smith", p.Reviews[1].CandidateName)
	assert.Equal(t, []string{"Peter Pan"}, p.Available)
}

func TestAvailableCandidates(t *testing.T) {
	f := domain.LegacyProfile().Fields
	completed := []domain.RawRecord{{f.Candidate: "Jane Doe"}, {f.Candidate: "john smith"}}

	got := AvailableCandidates([]string{"Jane Doe", "John Smith", "Amina"}, completed, f)
	assert.Equal(t, []string{"John Smith", "Amina"}, got, "matching is exact")
	assert.Empty(t, AvailableCandidates(nil, completed, f))
}

func TestCompletedReviews(t *testing.T) {
	f := domain.LegacyProfile().Fields
	records := []domain.RawRecord{
		{f.Candidate: "A", f.Complete: "2", domain.FieldRepeatInstrument: "marking_sheet"},
		{f.Candidate: "B", f.Complete: "2"},
		{f.Candidate: "C", f.Complete: "1", domain.FieldRepeatInstrument: "marking_sheet"},
		{f.Candidate: " ", f.Complete: "2", domain.FieldRepeatInstrument: "marking_sheet"},
		{f.Candidate: "D", f.Complete: "2", domain.FieldRepeatInstrument: "reviewer_details"},
	}

	got := completedReviews(records, f, "marking_sheet")
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Get(f.Candidate))
	assert.Equal(t, "B", got[1].Get(f.Candidate))
}

func TestNextInstance(t *testing.T) {
	tests := []struct {
		name    string
		records []domain.RawRecord
		want    int
	}{
		{name: "no records", want: 1},
		{
			name: "highest plus one",
			records: []domain.RawRecord{
				{domain.FieldRepeatInstrument: "marking_sheet", domain.FieldRepeatInstance: "1"},
				{domain.FieldRepeatInstrument: "marking_sheet", domain.FieldRepeatInstance: "4"},
				{domain.FieldRepeatInstrument: "marking_sheet", domain.FieldRepeatInstance: "2"},
			},
			want: 5,
		},
		{
			name: "other instruments ignored",
			records: []domain.RawRecord{
				{domain.FieldRepeatInstrument: "reviewer_details", domain.FieldRepeatInstance: "9"},
				{domain.FieldRepeatInstrument: "marking_sheet", domain.FieldRepeatInstance: "x"},
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextInstance(tt.records, "marking_sheet"))
		})
	}
}

func TestMarkingSheetService_Validate(t *testing.T) {
	valid := Submission{
		ReviewerName:   "Dr. A",
		ReviewerEmail:  "a@aphrc.org",
		Candidate:      "Peter Pan",
		Scores:         domain.CriterionValues{3, 2, 1, 3, 2, 1, 3},
		Recommendation: domain.RecommendRegular,
	}

	tests := []struct {
		name    string
		profile domain.Profile
		mutate  func(*Submission)
		want    []string
	}{
		{name: "valid legacy", profile: domain.LegacyProfile(), mutate: func(*Submission) {}},
		{
			name:    "missing identity",
			profile: domain.LegacyProfile(),
			mutate:  func(s *Submission) { s.ReviewerName, s.Candidate = "", "" },
			want:    []string{"ReviewerName failed required", "Candidate failed required"},
		},
		{
			name:    "bad email",
			profile: domain.LegacyProfile(),
			mutate:  func(s *Submission) { s.ReviewerEmail = "dr-a" },
			want:    []string{"ReviewerEmail failed email"},
		},
		{
			name:    "unknown recommendation",
			profile: domain.LegacyProfile(),
			mutate:  func(s *Submission) { s.Recommendation = "4" },
			want:    []string{"Recommendation failed oneof"},
		},
		{
			name:    "score above legacy maximum",
			profile: domain.LegacyProfile(),
			mutate:  func(s *Submission) { s.Scores[domain.Feasibility] = 4 },
			want:    []string{"score 4 must be between 0 and 3"},
		},
		{
			name:    "revised requires narrative fields",
			profile: domain.RevisedProfile(),
			mutate:  func(s *Submission) { s.Recommendation = "" },
			want:    []string{"proposalStrength is required", "areasForImprovement is required", "finalRecommendation is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMarkingSheetService(t, &testutils.FakeREDCap{}, tt.profile)
			sub := valid
			tt.mutate(&sub)

			err := svc.Validate(sub)
			if len(tt.want) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			for _, msg := range tt.want {
				assert.Contains(t, verr.Error(), msg)
			}
		})
	}
}

func TestMarkingSheetService_Submit(t *testing.T) {
	ctx := context.Background()
	sub := Submission{
		ReviewerName:   "Dr. A",
		ReviewerEmail:  "a@aphrc.org",
		Candidate:      "Peter Pan",
		Scores:         domain.CriterionValues{2, 2, 2, 2, 2, 2, 2},
		Strength:       "2",
		Improvement:    "Sharpen the aims",
		Recommendation: domain.RecommendRegular,
	}

	t.Run("new submission takes next instance", func(t *testing.T) {
		fake := newReviewerFake()
		res, err := newMarkingSheetService(t, fake, domain.LegacyProfile()).Submit(ctx, sub)
		require.NoError(t, err)

		assert.Equal(t, &SubmissionResult{RecordID: "1", Instance: 4, Total: 14, Action: ActionSubmitted, Candidate: "Peter Pan"}, res)

		require.Len(t, fake.Imports, 1)
		require.Len(t, fake.Imports[0], 1)
		assert.True(t, fake.Overwrites[0])

		row := fake.Imports[0][0]
		assert.Equal(t, "1", row.Get(domain.FieldRecordID))
		assert.Equal(t, "marking_sheet", row.Get(domain.FieldRepeatInstrument))
		assert.Equal(t, "4", row.Get(domain.FieldRepeatInstance))
		assert.Equal(t, "Peter Pan", row.Get("candidate_names"))
		assert.Equal(t, "2", row.Get("bg_problem_clarity"))
		assert.Equal(t, "2", row.Get("applicant_cv"))
		assert.Equal(t, "14", row.Get("format_total"))
		assert.Equal(t, "2", row.Get("final_recommendation1"))
		assert.Equal(t, "2", row.Get("marking_sheet_complete"))
		assert.Equal(t, "Sharpen the aims", row.Get("areas_for_improvement1"))
	})

	t.Run("positive instance updates in place", func(t *testing.T) {
		fake := newReviewerFake()
		update := sub
		update.Instance = 3
		update.Scores = domain.CriterionValues{3, 3, 3, 3, 3, 3, 2.5}

		res, err := newMarkingSheetService(t, fake, domain.LegacyProfile()).Submit(ctx, update)
		require.NoError(t, err)

		assert.Equal(t, ActionUpdated, res.Action)
		assert.Equal(t, 3, res.Instance)
		assert.Equal(t, 20.5, res.Total)
		assert.Equal(t, "20.5", fake.Imports[0][0].Get("format_total"))
		assert.Equal(t, "2.5", fake.Imports[0][0].Get("applicant_cv"))
		assert.Len(t, fake.Records, 5, "instance 3 replaced rather than appended")
	})

	t.Run("invalid submission is not imported", func(t *testing.T) {
		fake := newReviewerFake()
		bad := sub
		bad.Candidate = ""

		_, err := newMarkingSheetService(t, fake, domain.LegacyProfile()).Submit(ctx, bad)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Empty(t, fake.Imports)
		assert.Zero(t, fake.ExportCount())
	})

	t.Run("unknown reviewer", func(t *testing.T) {
		fake := newReviewerFake()
		other := sub
		other.ReviewerEmail = "c@aphrc.org"

		_, err := newMarkingSheetService(t, fake, domain.LegacyProfile()).Submit(ctx, other)
		assert.ErrorIs(t, err, ErrReviewerNotFound)
		assert.Empty(t, fake.Imports)
	})

	t.Run("import failure", func(t *testing.T) {
		fake := newReviewerFake()
		fake.ImportErr = errors.New("forbidden")

		_, err := newMarkingSheetService(t, fake, domain.LegacyProfile()).Submit(ctx, sub)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to import marking sheet")
	})
}
