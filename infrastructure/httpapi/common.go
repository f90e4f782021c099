// Package httpapi exposes the review services over HTTP with gorilla/mux.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/aphrc/proposal-review/infrastructure/httpapi/exception"
	"github.com/aphrc/proposal-review/internal/application"
	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

// maxBodyBytes bounds request bodies read by the controllers.
const maxBodyBytes = 1 << 20

func respondWithJson(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("Failed to encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func RespondWithCustomError(w http.ResponseWriter, err *exception.CustomError) {
	log.Debugf("Request failed. Code = %d. Message = %s. Params: %v. Debug: %s", err.Status, err.Message, err.Params, err.Debug)
	respondWithJson(w, err.Status, err)
}

// respondWithError maps service errors to a CustomError. Anything it does
// not recognise is a 500 carrying msg.
func respondWithError(w http.ResponseWriter, msg string, err error) {
	var customError *exception.CustomError
	if errors.As(err, &customError) {
		RespondWithCustomError(w, customError)
		return
	}

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.ValidationFailed,
			Message: exception.ValidationFailedMsg,
			Params:  map[string]interface{}{"entity": verr.Entity, "errors": verr.Errors},
			Debug:   verr.Error(),
		})
	case errors.Is(err, application.ErrReviewerNotFound):
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusNotFound,
			Code:    exception.ReviewerNotFound,
			Message: exception.ReviewerNotFoundMsg,
		})
	case errors.Is(err, domain.ErrEmptyValue), errors.Is(err, domain.ErrInvalidFilter), errors.Is(err, application.ErrInvalidTrigger):
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidParameterValue,
			Message: err.Error(),
		})
	case errors.Is(err, ports.ErrTimeout):
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusGatewayTimeout,
			Code:    exception.UpstreamTimeout,
			Message: exception.UpstreamTimeoutMsg,
			Debug:   err.Error(),
		})
	case isUpstream(err):
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadGateway,
			Code:    exception.UpstreamUnavailable,
			Message: exception.UpstreamUnavailableMsg,
			Params:  map[string]interface{}{"error": err.Error()},
		})
	default:
		log.Errorf("%s: %v", msg, err)
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusInternalServerError,
			Code:    exception.InternalServerError,
			Message: exception.InternalServerErrorMsg,
			Params:  map[string]interface{}{"msg": msg},
			Debug:   err.Error(),
		})
	}
}

func isUpstream(err error) bool {
	var rse *ports.RecordSourceError
	return errors.As(err, &rse) ||
		errors.Is(err, ports.ErrServiceUnavailable) ||
		errors.Is(err, ports.ErrRateLimited) ||
		errors.Is(err, ports.ErrAuthenticationFailed) ||
		errors.Is(err, ports.ErrInvalidResponse)
}

func getStringParam(r *http.Request, p string) string {
	return mux.Vars(r)[p]
}

func getUnescapedStringParam(r *http.Request, p string) (string, error) {
	return url.PathUnescape(getStringParam(r, p))
}

func invalidParam(w http.ResponseWriter, param, value string, err error) {
	RespondWithCustomError(w, &exception.CustomError{
		Status:  http.StatusBadRequest,
		Code:    exception.InvalidParameterValue,
		Message: exception.InvalidParameterValueMsg,
		Params:  map[string]interface{}{"param": param, "value": value},
		Debug:   fmt.Sprint(err),
	})
}
