package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RankingDependencies serves the bar race for the current view.
type RankingDependencies interface {
	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, country string) (Entry, error)
}

// RankingHandler handles /top and /rank/{country}.
type RankingHandler struct {
	deps     RankingDependencies
	maxLimit int
}

// NewRankingHandler creates a ranking handler; /top rejects limits above
// maxLimit.
func NewRankingHandler(deps RankingDependencies, maxLimit int) *RankingHandler {
	return &RankingHandler{deps: deps, maxLimit: maxLimit}
}

// HandleTop handles GET /top?limit=N. Without a limit the view's topN is
// used.
func (h *RankingHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	const op = "api.top"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		switch {
		case err != nil || v < 1:
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		case v > h.maxLimit:
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	entries, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleRank handles GET /rank/{country}. The name may be path-escaped.
func (h *RankingHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	country, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/rank/"))
	if err != nil || strings.TrimSpace(country) == "" || strings.Contains(country, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	entry, err := h.deps.Rank(r.Context(), country)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
