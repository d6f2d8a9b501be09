package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayusman/sitstand/internal/scoring"
	"github.com/ayusman/sitstand/internal/session"
	"github.com/ayusman/sitstand/internal/store"
)

// Controller is the live session the handler drives.
type Controller interface {
	StartSession() string
	StopSession() scoring.Summary
	ResetSession()
	Status() session.Status
	LastResult() (session.FrameResult, bool)
}

// LiveHandler controls the live session:
//
//	GET  /api/session          status and the latest frame result
//	POST /api/session/start    start a new test
//	POST /api/session/stop     stop the test and return its summary
//	POST /api/session/reset    clear everything
//	GET  /api/session/config   saved session settings
//	PUT  /api/session/config   save session settings for the next launch
//	DELETE /api/session/config back to defaults on the next launch
type LiveHandler struct {
	ctl   Controller
	store *store.Store
}

// NewLiveHandler creates a LiveHandler. s may be nil, which disables the
// config endpoints.
func NewLiveHandler(ctl Controller, s *store.Store) *LiveHandler {
	return &LiveHandler{ctl: ctl, store: s}
}

type liveResponse struct {
	Status session.Status       `json:"status"`
	Frame  *session.FrameResult `json:"frame,omitempty"`
}

type startResponse struct {
	ID string `json:"id"`
}

// ServeHTTP implements http.Handler.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/session"), "/")

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		resp := liveResponse{Status: h.ctl.Status()}
		if res, ok := h.ctl.LastResult(); ok {
			resp.Frame = &res
		}
		writeJSON(w, http.StatusOK, resp)
	case "start", "stop", "reset":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.control(w, action)
	case "config":
		h.config(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *LiveHandler) control(w http.ResponseWriter, action string) {
	switch action {
	case "start":
		writeJSON(w, http.StatusCreated, startResponse{ID: h.ctl.StartSession()})
	case "stop":
		if !h.ctl.Status().Active {
			writeError(w, http.StatusConflict, "No session running")
			return
		}
		writeJSON(w, http.StatusOK, h.ctl.StopSession())
	case "reset":
		h.ctl.ResetSession()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *LiveHandler) config(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "Settings not available")
		return
	}

	switch r.Method {
	case http.MethodGet:
		raw, err := h.store.Settings().Get(store.SettingSessionConfig)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "Failed to read settings")
			return
		}
		cfg, err := session.ParseConfig([]byte(raw))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, cfg)

	case http.MethodPut:
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read body")
			return
		}
		cfg, err := session.ParseConfig(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		data, _ := json.Marshal(cfg)
		if err := h.store.Settings().Set(store.SettingSessionConfig, string(data)); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
		writeJSON(w, http.StatusOK, cfg)

	case http.MethodDelete:
		if err := h.store.Settings().Delete(store.SettingSessionConfig); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to delete settings")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
