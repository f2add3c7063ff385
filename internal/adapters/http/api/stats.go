package api

import (
	"net/http"

	"github.com/okian/speedglobe/internal/adapters/http/push"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// pushStatser is implemented by the websocket hub.
type pushStatser interface {
	Stats() push.Stats
}

// StatsHandler serves service counters, plus renderer connection counts
// when a push hub is mounted.
type StatsHandler struct {
	statsProvider StatsProvider
	push          pushStatser
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	stats := h.statsProvider.GetStats()
	if h.push != nil {
		stats["push"] = h.push.Stats()
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, stats)
}
