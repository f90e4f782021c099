package application

import (
	"context"
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

// QueueItem is one assigned proposal in a reviewer's queue.
type QueueItem struct {
	CandidateName string `json:"candidateName"`
	Completed     bool   `json:"completed"`
}

// ReviewQueue lists a reviewer's assignments and where to fill them in.
type ReviewQueue struct {
	Reviewer   Reviewer    `json:"reviewer"`
	Items      []QueueItem `json:"items"`
	Completed  int         `json:"completedCount"`
	SurveyLink string      `json:"surveyLink,omitempty"`
}

// ReviewQueueService builds the self-service review queue.
type ReviewQueueService struct {
	source      ports.RecordSource
	directory   ports.SurveyDirectory
	fields      domain.FieldMap
	instruments InstrumentConfig
}

// NewReviewQueueService returns a queue service reading records from
// source and survey links from directory.
func NewReviewQueueService(source ports.RecordSource, directory ports.SurveyDirectory, fields domain.FieldMap, instruments InstrumentConfig) (*ReviewQueueService, error) {
	if source == nil || directory == nil {
		return nil, fmt.Errorf("%w: record source and survey directory are required", domain.ErrInvalidConfiguration)
	}
	setDefault(&instruments.MarkingSheet, DefaultMarkingSheet)
	setDefault(&instruments.ReviewerDetails, DefaultReviewerDetails)
	return &ReviewQueueService{source: source, directory: directory, fields: fields, instruments: instruments}, nil
}

// Queue looks up the reviewer, then loads their completed reviews and
// survey link concurrently. A failed link lookup leaves the link empty.
func (s *ReviewQueueService) Queue(ctx context.Context, email string) (*ReviewQueue, error) {
	reviewer, err := lookupReviewer(ctx, s.source, s.instruments.ReviewerDetails, email)
	if err != nil {
		return nil, err
	}

	var (
		reviewed []string
		link     string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := s.source.ExportRecords(gctx, ports.ExportOptions{
			Records: []string{reviewer.RecordID},
			Forms:   []string{s.instruments.MarkingSheet},
		})
		if err != nil {
			return fmt.Errorf("failed to fetch existing reviews: %w", err)
		}
		for _, r := range completedReviews(records, s.fields, s.instruments.MarkingSheet) {
			reviewed = append(reviewed, strings.TrimSpace(r.Get(s.fields.Candidate)))
		}
		return nil
	})
	g.Go(func() error {
		link = s.surveyLink(gctx, reviewer)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	queue := &ReviewQueue{Reviewer: *reviewer, SurveyLink: link, Items: make([]QueueItem, 0, len(reviewer.Assigned))}
	for _, name := range reviewer.Assigned {
		done := slices.Contains(reviewed, name)
		if done {
			queue.Completed++
		}
		queue.Items = append(queue.Items, QueueItem{CandidateName: name, Completed: done})
	}
	return queue, nil
}

// surveyLink prefers the participant list entry for the reviewer, then
// the survey link API.
func (s *ReviewQueueService) surveyLink(ctx context.Context, reviewer *Reviewer) string {
	participants, err := s.directory.Participants(ctx, s.instruments.MarkingSheet)
	if err != nil {
		log.Warnf("Failed to fetch participant list: %v", err)
	} else if link := participantLink(participants, reviewer); link != "" {
		return link
	}

	link, err := s.directory.SurveyLink(ctx, reviewer.RecordID, s.instruments.MarkingSheet)
	if err != nil {
		log.Warnf("Failed to fetch survey link for record %s: %v", reviewer.RecordID, err)
		return ""
	}
	if strings.HasPrefix(link, "http") {
		return link
	}
	return ""
}

func participantLink(participants []ports.SurveyParticipant, reviewer *Reviewer) string {
	for _, p := range participants {
		matches := (p.Email != "" && p.Email == reviewer.Email) ||
			(reviewer.RecordID != "" && (p.Record == reviewer.RecordID || p.RecordID == reviewer.RecordID))
		if !matches {
			continue
		}
		if p.SurveyQueueLink != "" {
			return p.SurveyQueueLink
		}
		if p.SurveyLink != "" {
			return p.SurveyLink
		}
	}
	return ""
}
