// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	service "github.com/okian/speedglobe/internal/app"
	"github.com/okian/speedglobe/internal/domain/normalize"
)

const uploadField = "file"

// DatasetDependencies defines the interface for dataset loading.
type DatasetDependencies interface {
	LoadCSV(ctx context.Context, r io.Reader, origin string, opts ...service.LoadOption) (service.LoadReport, error)
	Schema() (normalize.Schema, error)
	Diagnostics() ([]normalize.Diagnostic, error)
}

// DatasetsHandler handles dataset requests.
type DatasetsHandler struct {
	deps DatasetDependencies
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(deps DatasetDependencies) *DatasetsHandler {
	return &DatasetsHandler{deps: deps}
}

// HandlePostDataset handles POST /datasets requests. The CSV is either the
// raw body or the multipart field "file". ?force=true reloads bytes that
// were already seen.
func (h *DatasetsHandler) HandlePostDataset(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_dataset"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var opts []service.LoadOption
	if v := r.URL.Query().Get("force"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if force {
			opts = append(opts, service.Force())
		}
	}

	body, origin, err := csvBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	report, err := h.deps.LoadCSV(r.Context(), body, origin, opts...)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if report.Duplicate {
		writeJSON(w, http.StatusOK, report)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// csvBody returns the upload stream and a name for it.
func csvBody(r *http.Request) (io.Reader, string, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		return r.Body, "upload", nil
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", errors.New("missing multipart field \"" + uploadField + "\"")
		}
		if err != nil {
			return nil, "", err
		}
		if part.FormName() != uploadField {
			continue
		}
		origin := part.FileName()
		if origin == "" {
			origin = "upload"
		}
		return part, origin, nil
	}
}

// HandleGetSchema handles GET /datasets/schema requests.
func (h *DatasetsHandler) HandleGetSchema(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_schema"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	schema, err := h.deps.Schema()
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// HandleGetDiagnostics handles GET /datasets/diagnostics requests.
func (h *DatasetsHandler) HandleGetDiagnostics(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_diagnostics"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	diags, err := h.deps.Diagnostics()
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if diags == nil {
		diags = []normalize.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, diags)
}
