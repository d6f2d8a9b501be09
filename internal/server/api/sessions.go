package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/sitstand/internal/store"
)

// SessionHandler serves recorded sessions and their repetitions.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a SessionHandler backed by s.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions, /api/sessions/{id} and
// /api/sessions/{id}/repetitions.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch {
	case sub == "repetitions" && r.Method == http.MethodGet:
		h.repetitions(w, r, id)
	case sub != "":
		writeError(w, http.StatusNotFound, "Not found")
	case r.Method == http.MethodGet:
		h.get(w, r, id)
	case r.Method == http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sessionResponse struct {
	ID           string          `json:"id"`
	StartedAt    string          `json:"started_at"`
	EndedAt      string          `json:"ended_at,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	EndReason    string          `json:"end_reason,omitempty"`
	Reps         int             `json:"reps"`
	FullReps     int             `json:"full_reps"`
	PartialReps  int             `json:"partial_reps"`
	RejectedReps int             `json:"rejected_reps"`
	Overall      float64         `json:"overall"`
	Summary      json.RawMessage `json:"summary,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type listRepetitionsResponse struct {
	Repetitions []*store.Repetition `json:"repetitions"`
}

func toSessionResponse(s *store.Session, withSummary bool) sessionResponse {
	resp := sessionResponse{
		ID:           s.ID,
		StartedAt:    s.StartedAt.Format(timeFormat),
		DurationMs:   s.DurationMs,
		EndReason:    s.EndReason,
		Reps:         s.Reps,
		FullReps:     s.FullReps,
		PartialReps:  s.PartialReps,
		RejectedReps: s.RejectedReps,
		Overall:      s.Overall,
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(timeFormat)
	}
	if withSummary && json.Valid([]byte(s.Summary)) {
		resp.Summary = json.RawMessage(s.Summary)
	}
	return resp
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s, false))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s, true))
}

// repetitions handles GET /api/sessions/{id}/repetitions.
func (h *SessionHandler) repetitions(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	reps, err := h.store.Repetitions().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list repetitions")
		return
	}
	if reps == nil {
		reps = []*store.Repetition{}
	}
	writeJSON(w, http.StatusOK, listRepetitionsResponse{Repetitions: reps})
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
