package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aphrc/proposal-review/infrastructure/httpapi/exception"
	"github.com/aphrc/proposal-review/internal/application"
	"github.com/aphrc/proposal-review/internal/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Dashboard is the part of application.DashboardService the controllers use.
type Dashboard interface {
	Snapshot() domain.DashboardState
	Refresh(ctx context.Context) (domain.DashboardState, error)
	View(f domain.Filter) application.DashboardView
	Export(ctx context.Context, w io.Writer) (string, error)
}

type ReviewsController interface {
	GetReviews(w http.ResponseWriter, r *http.Request)
	RefreshReviews(w http.ResponseWriter, r *http.Request)
	ExportReviews(w http.ResponseWriter, r *http.Request)
}

func NewReviewsController(dashboard Dashboard) ReviewsController {
	return &reviewsControllerImpl{dashboard: dashboard}
}

type reviewsControllerImpl struct {
	dashboard Dashboard
}

// GetReviews fetches once when nothing was loaded yet. A failed fetch is
// reported inside the view rather than as an error status.
func (c *reviewsControllerImpl) GetReviews(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	if st := c.dashboard.Snapshot(); st.FetchedAt().IsZero() && st.Phase() != domain.PhaseFailed {
		if _, err := c.dashboard.Refresh(r.Context()); err != nil {
			log.Warnf("Initial dashboard fetch failed: %v", err)
		}
	}
	respondWithJson(w, http.StatusOK, c.dashboard.View(filter))
}

func (c *reviewsControllerImpl) RefreshReviews(w http.ResponseWriter, r *http.Request) {
	st, err := c.dashboard.Refresh(r.Context())
	if err != nil {
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadGateway,
			Code:    exception.FetchFailed,
			Message: st.Error(),
			Debug:   err.Error(),
		})
		return
	}
	respondWithJson(w, http.StatusOK, struct {
		Summary   domain.Summary `json:"summary"`
		NoData    bool           `json:"noData"`
		Message   string         `json:"message,omitempty"`
		FetchedAt time.Time      `json:"fetchedAt"`
	}{
		Summary:   st.Grouped().Summary(),
		NoData:    st.NoData(),
		Message:   st.Message(),
		FetchedAt: st.FetchedAt(),
	})
}

// ExportReviews buffers the workbook so a failure can still be reported
// as JSON.
func (c *reviewsControllerImpl) ExportReviews(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	name, err := c.dashboard.Export(r.Context(), &buf)
	if err != nil {
		if isUpstream(err) {
			respondWithError(w, exception.ExportFailedMsg, err)
			return
		}
		RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusInternalServerError,
			Code:    exception.ExportFailed,
			Message: exception.ExportFailedMsg,
			Debug:   err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func parseFilter(w http.ResponseWriter, r *http.Request) (domain.Filter, bool) {
	q := r.URL.Query()
	filter := domain.Filter{
		Candidate: q.Get("candidate"),
		Search:    q.Get("search"),
	}

	rec, err := domain.ParseRecommendation(q.Get("recommendation"))
	if err != nil {
		invalidParam(w, "recommendation", q.Get("recommendation"), err)
		return domain.Filter{}, false
	}
	filter.Recommendation = rec

	count, err := domain.ParseReviewCountFilter(q.Get("reviewCount"))
	if err != nil {
		invalidParam(w, "reviewCount", q.Get("reviewCount"), err)
		return domain.Filter{}, false
	}
	filter.ReviewCount = count

	return filter, true
}
