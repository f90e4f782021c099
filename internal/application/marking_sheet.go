package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

// ErrReviewerNotFound is returned when no reviewer_details record matches
// an email.
var ErrReviewerNotFound = errors.New("no reviewer found with this email")

// Reviewer fields of the reviewer_details instrument.
const (
	fieldReviewerName     = "rev_name"
	fieldReviewerEmail    = "rev_email"
	fieldAssignedProposal = "assigned_proposals"
)

// completeStatus is the REDCap form status for a completed instrument.
const completeStatus = "2"

// Reviewer is a reviewer_details record.
type Reviewer struct {
	RecordID string   `json:"recordId"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Assigned []string `json:"assignedProposals"`
}

// ReviewerProfile is a reviewer with their review progress.
type ReviewerProfile struct {
	Reviewer  Reviewer              `json:"reviewer"`
	Reviews   []domain.ScoredReview `json:"existingReviews"`
	Available []string              `json:"availableCandidates"`
}

// Submission is a marking sheet entered through the service.
type Submission struct {
	ReviewerName   string                 `json:"reviewerName" validate:"required"`
	ReviewerEmail  string                 `json:"reviewerEmail" validate:"required,email"`
	Candidate      string                 `json:"candidateName" validate:"required"`
	Scores         domain.CriterionValues `json:"scores"`
	Strength       string                 `json:"proposalStrength"`
	Improvement    string                 `json:"areasForImprovement"`
	Recommendation domain.Recommendation  `json:"finalRecommendation" validate:"omitempty,oneof=1 2 3"`
	// Instance updates an existing marking sheet when positive.
	Instance int `json:"instance,omitempty" validate:"min=0"`
}

// Submission outcomes.
const (
	ActionSubmitted = "submitted"
	ActionUpdated   = "updated"
)

// SubmissionResult reports where a submission was stored.
type SubmissionResult struct {
	RecordID  string  `json:"recordId"`
	Instance  int     `json:"instance"`
	Total     float64 `json:"totalScore"`
	Action    string  `json:"action"`
	Candidate string  `json:"candidateName"`
}

// MarkingSheetService looks up reviewers and records their marking sheets.
type MarkingSheetService struct {
	source      ports.RecordSource
	writer      ports.RecordWriter
	profile     domain.Profile
	instruments InstrumentConfig
	validator   *validator.Validate
}

// NewMarkingSheetService returns a service scoring against profile.
func NewMarkingSheetService(source ports.RecordSource, writer ports.RecordWriter, profile domain.Profile, instruments InstrumentConfig) (*MarkingSheetService, error) {
	if source == nil || writer == nil {
		return nil, fmt.Errorf("%w: record source and writer are required", domain.ErrInvalidConfiguration)
	}
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	setDefault(&instruments.MarkingSheet, DefaultMarkingSheet)
	setDefault(&instruments.ReviewerDetails, DefaultReviewerDetails)

	return &MarkingSheetService{
		source:      source,
		writer:      writer,
		profile:     profile,
		instruments: instruments,
		validator:   v,
	}, nil
}

// LookupReviewer returns the first reviewer_details record for email.
func (s *MarkingSheetService) LookupReviewer(ctx context.Context, email string) (*Reviewer, error) {
	return lookupReviewer(ctx, s.source, s.instruments.ReviewerDetails, email)
}

func lookupReviewer(ctx context.Context, source ports.RecordSource, form, email string) (*Reviewer, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: reviewer email %q", domain.ErrEmptyValue, email)
	}

	records, err := source.ExportRecords(ctx, ports.ExportOptions{
		Forms:       []string{form},
		FilterLogic: fmt.Sprintf(`[%s]="%s"`, fieldReviewerEmail, strings.ReplaceAll(email, `"`, "")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reviewer details: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrReviewerNotFound
	}

	rec := records[0]
	return &Reviewer{
		RecordID: rec.Get(domain.FieldRecordID),
		Name:     rec.Get(fieldReviewerName),
		Email:    rec.Get(fieldReviewerEmail),
		Assigned: splitList(rec.Get(fieldAssignedProposal)),
	}, nil
}

// Profile returns the reviewer with their completed reviews and the
// assigned proposals still to review.
func (s *MarkingSheetService) Profile(ctx context.Context, email string) (*ReviewerProfile, error) {
	reviewer, err := s.LookupReviewer(ctx, email)
	if err != nil {
		return nil, err
	}

	records, err := s.markingSheets(ctx, reviewer.RecordID)
	if err != nil {
		return nil, err
	}

	completed := completedReviews(records, s.profile.Fields, s.instruments.MarkingSheet)
	calc := domain.NewCalculator(s.profile)
	reviews := make([]domain.ScoredReview, 0, len(completed))
	for _, rec := range completed {
		reviews = append(reviews, calc.Score(rec))
	}

	return &ReviewerProfile{
		Reviewer:  *reviewer,
		Reviews:   reviews,
		Available: AvailableCandidates(reviewer.Assigned, completed, s.profile.Fields),
	}, nil
}

// AvailableCandidates returns the assigned proposals that no completed
// review names exactly.
func AvailableCandidates(assigned []string, completed []domain.RawRecord, f domain.FieldMap) []string {
	available := make([]string, 0, len(assigned))
	for _, candidate := range assigned {
		reviewed := slices.ContainsFunc(completed, func(r domain.RawRecord) bool {
			return r.Get(f.Candidate) == candidate
		})
		if !reviewed {
			available = append(available, candidate)
		}
	}
	return available
}

// completedReviews keeps rows that name a candidate, belong to the
// marking sheet (or carry no repeat instrument) and are marked complete.
func completedReviews(records []domain.RawRecord, f domain.FieldMap, instrument string) []domain.RawRecord {
	var out []domain.RawRecord
	for _, r := range records {
		if !r.Has(f.Candidate) {
			continue
		}
		if ri := r.Get(domain.FieldRepeatInstrument); ri != "" && ri != instrument {
			continue
		}
		if r.Get(f.Complete) != completeStatus {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *MarkingSheetService) markingSheets(ctx context.Context, recordID string) ([]domain.RawRecord, error) {
	records, err := s.source.ExportRecords(ctx, ports.ExportOptions{
		Records: []string{recordID},
		Forms:   []string{s.instruments.MarkingSheet},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing reviews: %w", err)
	}
	return records, nil
}

// NextInstance returns one past the highest marking sheet instance in
// records, or 1 when there is none.
func NextInstance(records []domain.RawRecord, instrument string) int {
	highest := 0
	for _, r := range records {
		if r.Get(domain.FieldRepeatInstrument) != instrument {
			continue
		}
		if n, err := strconv.Atoi(r.Get(domain.FieldRepeatInstance)); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// Validate checks sub against the struct rules, the scale maxima and the
// fields the active layout requires.
func (s *MarkingSheetService) Validate(sub Submission) error {
	verr := domain.NewValidationError("marking sheet")

	if err := s.validator.Struct(sub); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				verr.AddError(fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
		} else {
			verr.AddError(err.Error())
		}
	}
	if err := s.profile.Scale.CheckScores(sub.Scores); err != nil {
		verr.AddError(err.Error())
	}
	if s.profile.Schema == domain.SchemaRevised {
		if strings.TrimSpace(sub.Strength) == "" {
			verr.AddError("proposalStrength is required")
		}
		if strings.TrimSpace(sub.Improvement) == "" {
			verr.AddError("areasForImprovement is required")
		}
		if sub.Recommendation == "" {
			verr.AddError("finalRecommendation is required")
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Submit stores sub as a completed marking sheet on the reviewer's record.
// A new submission takes the next free instance; a positive Instance
// overwrites that instance.
func (s *MarkingSheetService) Submit(ctx context.Context, sub Submission) (*SubmissionResult, error) {
	if err := s.Validate(sub); err != nil {
		return nil, err
	}

	reviewer, err := s.LookupReviewer(ctx, sub.ReviewerEmail)
	if err != nil {
		return nil, err
	}

	instance, action := sub.Instance, ActionUpdated
	if instance == 0 {
		records, err := s.markingSheets(ctx, reviewer.RecordID)
		if err != nil {
			return nil, err
		}
		instance, action = NextInstance(records, s.instruments.MarkingSheet), ActionSubmitted
	}

	row, total := s.buildRow(reviewer.RecordID, instance, sub)
	if _, err := s.writer.ImportRecords(ctx, []domain.RawRecord{row}, true); err != nil {
		return nil, fmt.Errorf("failed to import marking sheet: %w", err)
	}
	log.Infof("Marking sheet %s: record %s instance %d for %q", action, reviewer.RecordID, instance, sub.Candidate)

	return &SubmissionResult{
		RecordID:  reviewer.RecordID,
		Instance:  instance,
		Total:     total,
		Action:    action,
		Candidate: sub.Candidate,
	}, nil
}

func (s *MarkingSheetService) buildRow(recordID string, instance int, sub Submission) (domain.RawRecord, float64) {
	f := s.profile.Fields
	row := domain.RawRecord{
		domain.FieldRecordID:         recordID,
		domain.FieldRepeatInstrument: s.instruments.MarkingSheet,
		domain.FieldRepeatInstance:   strconv.Itoa(instance),
		f.Reviewer:                   sub.ReviewerName,
		f.ReviewerEmail:              sub.ReviewerEmail,
		f.Candidate:                  sub.Candidate,
		f.Strength:                   sub.Strength,
		f.Improvement:                sub.Improvement,
		f.Recommendation:             string(sub.Recommendation),
		f.Complete:                   completeStatus,
	}

	var total float64
	for i, v := range sub.Scores {
		row[f.Scores[i]] = formatNumber(v)
		total += v
	}
	row[f.Total] = formatNumber(total)
	return row, total
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
