// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/speedglobe/internal/adapters/export"
	service "github.com/okian/speedglobe/internal/app"
	"github.com/okian/speedglobe/internal/domain/normalize"
	"github.com/okian/speedglobe/internal/domain/points"
	"github.com/okian/speedglobe/internal/domain/types"
	"github.com/okian/speedglobe/internal/domain/viewstate"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	DatasetDependencies
	QueryDependencies
	RankingDependencies
	StateDependencies
	ExportDependencies
}

// Entry mirrors the read shape returned by bar race queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	datasetsHandler    *DatasetsHandler
	queryHandler       *QueryHandler
	rankingHandler     *RankingHandler
	stateHandler       *StateHandler
	exportHandler      *ExportHandler
	dashboardHandler   *dashboardHandler
	push               http.Handler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithPush mounts h, usually the websocket hub, at /ws. When h also
// reports push.Stats, /stats includes them.
func WithPush(h http.Handler) ServerOption {
	return func(s *Server) {
		s.push = h
		if ps, ok := h.(pushStatser); ok {
			s.statsHandler.push = ps
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(func() error { _, err := deps.State(); return err }),
		statsHandler:       NewStatsHandler(statsProvider),
		datasetsHandler:    NewDatasetsHandler(deps),
		queryHandler:       NewQueryHandler(deps),
		rankingHandler:     NewRankingHandler(deps, points.MaxTopN),
		stateHandler:       NewStateHandler(deps),
		exportHandler:      NewExportHandler(deps),
		dashboardHandler:   newDashboardHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/datasets", MetricsMiddleware(s.datasetsHandler.HandlePostDataset, "datasets"))
	mux.HandleFunc("/datasets/schema", MetricsMiddleware(s.datasetsHandler.HandleGetSchema, "datasets_schema"))
	mux.HandleFunc("/datasets/diagnostics", MetricsMiddleware(s.datasetsHandler.HandleGetDiagnostics, "datasets_diagnostics"))

	mux.HandleFunc("/points", MetricsMiddleware(s.queryHandler.HandleGetPoints, "points"))
	mux.HandleFunc("/regions", MetricsMiddleware(s.queryHandler.HandleGetRegions, "regions"))
	mux.HandleFunc("/trend/", MetricsMiddleware(s.queryHandler.HandleGetTrend, "trend"))
	mux.HandleFunc("/search", MetricsMiddleware(s.queryHandler.HandleSearch, "search"))
	mux.HandleFunc("/nearest", MetricsMiddleware(s.queryHandler.HandleNearest, "nearest"))
	mux.HandleFunc("/top", MetricsMiddleware(s.rankingHandler.HandleTop, "top"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankingHandler.HandleRank, "rank"))

	mux.HandleFunc("/state", MetricsMiddleware(s.stateHandler.HandleState, "state"))
	mux.HandleFunc("/play", MetricsMiddleware(s.stateHandler.HandlePlay, "play"))
	mux.HandleFunc("/pause", MetricsMiddleware(s.stateHandler.HandlePause, "pause"))
	mux.HandleFunc("/journal", MetricsMiddleware(s.stateHandler.HandleJournal, "journal"))
	mux.HandleFunc("/cache", MetricsMiddleware(s.stateHandler.HandleCache, "cache"))

	mux.HandleFunc("/export/points.geojson", MetricsMiddleware(s.exportHandler.HandleGeoJSON, "export_geojson"))
	mux.HandleFunc("/export/data.xlsx", MetricsMiddleware(s.exportHandler.HandleXLSX, "export_xlsx"))
	mux.HandleFunc("/charts/", MetricsMiddleware(s.exportHandler.HandleChart, "charts"))

	if s.push != nil {
		mux.HandleFunc("/ws", MetricsMiddleware(s.push.ServeHTTP, "ws"))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure translates an upstream error into a status and error code.
func writeFailure(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	writeError(w, status, code, Wrap(op, err))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, points.ErrCountryNotFound), errors.Is(err, viewstate.ErrUnknownCountry):
		return http.StatusNotFound, "country_not_found"
	case errors.Is(err, service.ErrEmptyDataset):
		return http.StatusNotFound, "no_dataset"
	case errors.Is(err, export.ErrNoData):
		return http.StatusNotFound, "no_data"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrNoSelection):
		return http.StatusBadRequest, "no_selection"
	case errors.Is(err, viewstate.ErrUnknownYear),
		errors.Is(err, viewstate.ErrUnknownRegion),
		errors.Is(err, viewstate.ErrInvalidMutation),
		errors.Is(err, points.ErrEmptyQuery),
		errors.Is(err, service.ErrInvalidCoordinate),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, service.ErrNoCountryColumn),
		errors.Is(err, normalize.ErrEmptyInput),
		errors.Is(err, normalize.ErrMalformedCSV):
		return http.StatusUnprocessableEntity, "invalid_dataset"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, viewstate.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
