package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/okian/speedglobe/internal/domain/activity"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/viewstate"
)

const defaultJournalLimit = 50

// StateDependencies defines the interface for view state and session reads.
type StateDependencies interface {
	State() (viewstate.State, error)
	Update(ctx context.Context, m viewstate.Mutation) (viewstate.Change, error)
	Journal(n int) []activity.Entry
	CacheSnapshot(ctx context.Context) (map[string]model.Coordinate, error)
}

// StateHandler handles view state, journal and cache requests.
type StateHandler struct {
	deps StateDependencies
}

// NewStateHandler creates a new state handler.
func NewStateHandler(deps StateDependencies) *StateHandler {
	return &StateHandler{deps: deps}
}

// HandleState handles GET /state and POST /state requests. POST takes a
// JSON mutation and returns the applied change.
func (h *StateHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	const op = "api.state"
	switch r.Method {
	case http.MethodGet:
		st, err := h.deps.State()
		if err != nil {
			writeFailure(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case http.MethodPost:
		var m viewstate.Mutation
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		h.apply(w, r, op, m)
	default:
		http.NotFound(w, r)
	}
}

// HandlePlay handles POST /play requests.
func (h *StateHandler) HandlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	h.apply(w, r, "api.play", viewstate.Play())
}

// HandlePause handles POST /pause requests.
func (h *StateHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	h.apply(w, r, "api.pause", viewstate.Pause())
}

func (h *StateHandler) apply(w http.ResponseWriter, r *http.Request, op string, m viewstate.Mutation) {
	change, err := h.deps.Update(r.Context(), m)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

// HandleJournal handles GET /journal?limit= requests, newest first.
func (h *StateHandler) HandleJournal(w http.ResponseWriter, r *http.Request) {
	const op = "api.journal"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := defaultJournalLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	lines := h.deps.Journal(n)
	if lines == nil {
		lines = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, lines)
}

// HandleCache handles GET /cache requests: the session coordinate cache.
func (h *StateHandler) HandleCache(w http.ResponseWriter, r *http.Request) {
	const op = "api.cache"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	snap, err := h.deps.CacheSnapshot(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
