package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	service "github.com/okian/speedglobe/internal/app"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportDependencies defines the interface for file exports and chart snapshots.
type ExportDependencies interface {
	ExportGeoJSON(ctx context.Context, q service.PointQuery) ([]byte, error)
	ExportXLSX(ctx context.Context, w io.Writer) error
	RenderTrendPNG(ctx context.Context, w io.Writer, country string) error
	RenderRegionsPNG(ctx context.Context, w io.Writer) error
	RenderTopPNG(ctx context.Context, w io.Writer) error
}

// ExportHandler handles download requests.
type ExportHandler struct {
	deps ExportDependencies
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps ExportDependencies) *ExportHandler {
	return &ExportHandler{deps: deps}
}

// HandleGeoJSON handles GET /export/points.geojson requests.
func (h *ExportHandler) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_geojson"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	b, err := h.deps.ExportGeoJSON(r.Context(), service.PointQuery{})
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Content-Disposition", `attachment; filename="points.geojson"`)
	_, _ = w.Write(b)
}

// HandleXLSX handles GET /export/data.xlsx requests.
func (h *ExportHandler) HandleXLSX(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_xlsx"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	if err := h.deps.ExportXLSX(r.Context(), &buf); err != nil {
		writeFailure(w, op, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="data.xlsx"`)
	_, _ = buf.WriteTo(w)
}

// HandleChart handles GET /charts/{trend|regions|top}.png requests. The
// trend chart takes ?country=, defaulting to the selection.
func (h *ExportHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.chart"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	var (
		buf bytes.Buffer
		err error
	)
	switch strings.TrimPrefix(r.URL.Path, "/charts/") {
	case "trend.png":
		err = h.deps.RenderTrendPNG(r.Context(), &buf, r.URL.Query().Get("country"))
	case "regions.png":
		err = h.deps.RenderRegionsPNG(r.Context(), &buf)
	case "top.png":
		err = h.deps.RenderTopPNG(r.Context(), &buf)
	default:
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = buf.WriteTo(w)
}
