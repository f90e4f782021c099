package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/aphrc/proposal-review/infrastructure/httpapi/exception"
	"github.com/aphrc/proposal-review/internal/application"
	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

// Webhooks is the part of application.WebhookService the controllers use.
type Webhooks interface {
	HandleTrigger(ctx context.Context, t application.Trigger) (*application.MirrorResult, error)
	Latest(ctx context.Context, limit int) ([]ports.MirroredRecord, error)
}

type WebhookController interface {
	HandleRedcapTrigger(w http.ResponseWriter, r *http.Request)
	InspectPayload(w http.ResponseWriter, r *http.Request)
	GetMirroredRecords(w http.ResponseWriter, r *http.Request)
}

func NewWebhookController(webhooks Webhooks) WebhookController {
	return &webhookControllerImpl{webhooks: webhooks}
}

type webhookControllerImpl struct {
	webhooks Webhooks
}

func (c *webhookControllerImpl) HandleRedcapTrigger(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.BadRequestBody,
			Message: exception.BadRequestBodyMsg,
			Debug:   err.Error(),
		})
		return
	}

	trigger, err := application.ParseTrigger(body)
	if err != nil {
		respondWithError(w, "Failed to parse trigger", err)
		return
	}

	res, err := c.webhooks.HandleTrigger(r.Context(), trigger)
	if err != nil {
		respondWithError(w, "Failed to mirror record", err)
		return
	}
	if res.Skipped {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, application.NoRecordIDMessage)
		return
	}

	records := res.Records
	if records == nil {
		records = []domain.RawRecord{}
	}
	respondWithJson(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"record":  records,
	})
}

// InspectPayload logs a form-encoded body and echoes its field names.
func (c *webhookControllerImpl) InspectPayload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusMethodNotAllowed,
			Code:    exception.MethodNotAllowed,
			Message: exception.MethodNotAllowedMsg,
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, "Failed to read payload", err)
		return
	}
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.BadRequestBody,
			Message: exception.BadRequestBodyMsg,
			Debug:   err.Error(),
		})
		return
	}

	fields := make([]string, 0, len(values))
	for k := range values {
		fields = append(fields, k)
	}
	slices.Sort(fields)
	log.WithField("fields", fields).Infof("REDCap payload received: %v", values)

	respondWithJson(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        "Data received successfully",
		"receivedFields": fields,
	})
}

func (c *webhookControllerImpl) GetMirroredRecords(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			invalidParam(w, "limit", v, err)
			return
		}
		limit = n
	}

	records, err := c.webhooks.Latest(r.Context(), limit)
	if err != nil {
		log.Errorf("Failed to list mirrored records: %v", err)
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusInternalServerError,
			Code:    exception.MirrorUnavailable,
			Message: exception.MirrorUnavailableMsg,
			Debug:   err.Error(),
		})
		return
	}
	if records == nil {
		records = []ports.MirroredRecord{}
	}
	respondWithJson(w, http.StatusOK, records)
}
