package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/speedglobe/internal/app"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/types"
)

// QueryDependencies defines the interface for globe and chart reads.
type QueryDependencies interface {
	Points(ctx context.Context, q service.PointQuery) ([]service.StyledPoint, error)
	ExportGeoJSON(ctx context.Context, q service.PointQuery) ([]byte, error)
	Regions(ctx context.Context, year string) ([]types.RegionShare, error)
	Trend(ctx context.Context, country string) (types.Trend, error)
	Search(ctx context.Context, query string) (model.Record, error)
	Nearest(ctx context.Context, lat, lon float64) (service.NearestResult, error)
}

// QueryHandler handles point, region, trend and lookup requests.
type QueryHandler struct {
	deps QueryDependencies
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(deps QueryDependencies) *QueryHandler {
	return &QueryHandler{deps: deps}
}

// HandleGetPoints handles GET /points?year=&region=&format=json|geojson requests.
func (h *QueryHandler) HandleGetPoints(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_points"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	pq := service.PointQuery{Year: q.Get("year"), Region: q.Get("region")}

	switch q.Get("format") {
	case "", "json":
		pts, err := h.deps.Points(r.Context(), pq)
		if err != nil {
			writeFailure(w, op, err)
			return
		}
		if pts == nil {
			pts = []service.StyledPoint{}
		}
		writeJSON(w, http.StatusOK, pts)
	case "geojson":
		b, err := h.deps.ExportGeoJSON(r.Context(), pq)
		if err != nil {
			writeFailure(w, op, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write(b)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
	}
}

// HandleGetRegions handles GET /regions?year= requests.
func (h *QueryHandler) HandleGetRegions(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_regions"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	shares, err := h.deps.Regions(r.Context(), r.URL.Query().Get("year"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if shares == nil {
		shares = []types.RegionShare{}
	}
	writeJSON(w, http.StatusOK, shares)
}

// HandleGetTrend handles GET /trend/{country} requests. An empty country
// means the selected one.
func (h *QueryHandler) HandleGetTrend(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_trend"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	country := strings.TrimPrefix(r.URL.Path, "/trend/")
	if strings.Contains(country, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	t, err := h.deps.Trend(r.Context(), country)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleSearch handles GET /search?q= requests. The hit becomes the selection.
func (h *QueryHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.search"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rec, err := h.deps.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleNearest handles GET /nearest?lat=&lon= requests. The hit becomes the selection.
func (h *QueryHandler) HandleNearest(w http.ResponseWriter, r *http.Request) {
	const op = "api.nearest"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Nearest(r.Context(), lat, lon)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
