package httpapi

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/aphrc/proposal-review/internal/application"
)

// Controllers groups the handlers mounted by NewRouter.
type Controllers struct {
	Reviews   ReviewsController
	Reviewers ReviewerController
	Webhooks  WebhookController
	Health    HealthController
}

// NewRouter mounts every route. A nil gatherer leaves /metrics out.
func NewRouter(c Controllers, gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/v1/reviews", c.Reviews.GetReviews).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/reviews/refresh", c.Reviews.RefreshReviews).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/reviews/export", c.Reviews.ExportReviews).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/reviewers/{email}", c.Reviewers.GetReviewer).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/reviewers/{email}/queue", c.Reviewers.GetReviewQueue).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/marking-sheet", c.Reviewers.SubmitMarkingSheet).Methods(http.MethodPost)

	router.HandleFunc("/webhooks/redcap", c.Webhooks.HandleRedcapTrigger).Methods(http.MethodPost)
	// Every method reaches the handler so it can answer 405 itself.
	router.HandleFunc("/webhooks/inspect", c.Webhooks.InspectPayload)
	router.HandleFunc("/api/v1/mirror/records", c.Webhooks.GetMirroredRecords).Methods(http.MethodGet)

	router.HandleFunc("/live", c.Health.HandleLiveRequest).Methods(http.MethodGet)
	router.HandleFunc("/ready", c.Health.HandleReadyRequest).Methods(http.MethodGet)

	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return router
}

// MakeServer wraps r with recovery, CORS, compression and access logging.
func MakeServer(cfg application.ServerConfig, r http.Handler) *http.Server {
	log.Infof("Listen addr = %s", cfg.ListenAddress)

	var corsOptions []handlers.CORSOption
	corsOptions = append(corsOptions, handlers.AllowedHeaders([]string{"Connection", "Accept-Encoding", "Content-Encoding", "X-Requested-With", "Content-Type"}))
	if len(cfg.AllowedOrigins) > 0 {
		corsOptions = append(corsOptions, handlers.AllowedOrigins(cfg.AllowedOrigins))
	}
	corsOptions = append(corsOptions, handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "OPTIONS"}))
	corsOptions = append(corsOptions, handlers.ExposedHeaders([]string{"Content-Disposition"}))

	handler := handlers.RecoveryHandler(handlers.RecoveryLogger(log.StandardLogger()))(r)
	handler = handlers.CompressHandler(handlers.CORS(corsOptions...)(handler))
	handler = handlers.LoggingHandler(log.StandardLogger().Writer(), handler)

	return &http.Server{
		Handler:      handler,
		Addr:         cfg.ListenAddress,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
	}
}
