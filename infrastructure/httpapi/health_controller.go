package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController interface {
	HandleLiveRequest(w http.ResponseWriter, r *http.Request)
	HandleReadyRequest(w http.ResponseWriter, r *http.Request)
	// SetReady marks startup as finished.
	SetReady(ready bool)
}

// NewHealthController returns a controller that is not ready until
// SetReady(true) and, when ready, pings every dependency.
func NewHealthController(deps ...Pinger) HealthController {
	return &healthControllerImpl{deps: deps}
}

type healthControllerImpl struct {
	ready atomic.Bool
	deps  []Pinger
}

func (h *healthControllerImpl) SetReady(ready bool) { h.ready.Store(ready) }

func (h *healthControllerImpl) HandleLiveRequest(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *healthControllerImpl) HandleReadyRequest(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, d := range h.deps {
		if err := d.Ping(ctx); err != nil {
			respondWithJson(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
