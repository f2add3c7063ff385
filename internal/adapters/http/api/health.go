package api

import (
	"net/http"

	"github.com/okian/speedglobe/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler answers liveness probes. A healthy process replies with its
// metrics registry; a stopped service replies 503.
type HealthHandler struct {
	probe   func() error
	metrics http.Handler
}

// NewHealthHandler creates a health handler. A nil probe always passes.
func NewHealthHandler(probe func() error) *HealthHandler {
	return &HealthHandler{
		probe:   probe,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.probe != nil {
		if err := h.probe(); err != nil {
			writeFailure(w, "api.health", err)
			return
		}
	}
	h.metrics.ServeHTTP(w, r)
}
