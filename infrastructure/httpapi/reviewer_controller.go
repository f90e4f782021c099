package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aphrc/proposal-review/infrastructure/httpapi/exception"
	"github.com/aphrc/proposal-review/internal/application"
)

// MarkingSheets is the part of application.MarkingSheetService the
// controllers use.
type MarkingSheets interface {
	Profile(ctx context.Context, email string) (*application.ReviewerProfile, error)
	Submit(ctx context.Context, sub application.Submission) (*application.SubmissionResult, error)
}

// ReviewQueues is the part of application.ReviewQueueService the
// controllers use.
type ReviewQueues interface {
	Queue(ctx context.Context, email string) (*application.ReviewQueue, error)
}

type ReviewerController interface {
	GetReviewer(w http.ResponseWriter, r *http.Request)
	GetReviewQueue(w http.ResponseWriter, r *http.Request)
	SubmitMarkingSheet(w http.ResponseWriter, r *http.Request)
}

func NewReviewerController(sheets MarkingSheets, queues ReviewQueues) ReviewerController {
	return &reviewerControllerImpl{sheets: sheets, queues: queues}
}

type reviewerControllerImpl struct {
	sheets MarkingSheets
	queues ReviewQueues
}

func (c *reviewerControllerImpl) GetReviewer(w http.ResponseWriter, r *http.Request) {
	email, ok := emailParam(w, r)
	if !ok {
		return
	}
	profile, err := c.sheets.Profile(r.Context(), email)
	if err != nil {
		respondWithError(w, "Failed to load reviewer", err)
		return
	}
	respondWithJson(w, http.StatusOK, profile)
}

func (c *reviewerControllerImpl) GetReviewQueue(w http.ResponseWriter, r *http.Request) {
	email, ok := emailParam(w, r)
	if !ok {
		return
	}
	queue, err := c.queues.Queue(r.Context(), email)
	if err != nil {
		respondWithError(w, "Failed to load review queue", err)
		return
	}
	respondWithJson(w, http.StatusOK, queue)
}

func (c *reviewerControllerImpl) SubmitMarkingSheet(w http.ResponseWriter, r *http.Request) {
	var sub application.Submission
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&sub); err != nil {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.BadRequestBody,
			Message: exception.BadRequestBodyMsg,
			Debug:   err.Error(),
		})
		return
	}

	res, err := c.sheets.Submit(r.Context(), sub)
	if err != nil {
		respondWithError(w, "Failed to submit marking sheet", err)
		return
	}
	respondWithJson(w, http.StatusOK, res)
}

func emailParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, err := getUnescapedStringParam(r, "email")
	if err != nil {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidURLEscape,
			Message: exception.InvalidURLEscapeMsg,
			Params:  map[string]interface{}{"param": "email"},
			Debug:   err.Error(),
		})
		return "", false
	}
	return email, true
}
