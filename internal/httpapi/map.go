package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"fleetmap/core-go/internal/mapadapter"
)

type mapOpsResponse struct {
	Version  uint64          `json:"version"`
	Complete bool            `json:"complete"`
	Ops      []mapadapter.Op `json:"ops"`
}

func (h *Handler) ensureScene(w http.ResponseWriter, r *http.Request) bool {
	if h.scene == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "feed_unavailable", "map scene not configured", nil)
		return false
	}
	return true
}

func (h *Handler) handleMapScene(w http.ResponseWriter, r *http.Request) {
	if !h.ensureScene(w, r) {
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.scene.View())
}

// handleMapOps serves the op journal after ?since=. complete=false means the client fell behind
// the journal and must refetch the scene.
func (h *Handler) handleMapOps(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "validation_failed", "since must be a non-negative integer", map[string]any{"since": raw})
			return
		}
		since = parsed
	}
	if !h.ensureScene(w, r) {
		return
	}

	ops, version, complete := h.scene.OpsSince(since)
	if ops == nil {
		ops = []mapadapter.Op{}
	}
	h.writeJSON(w, r, http.StatusOK, mapOpsResponse{Version: version, Complete: complete, Ops: ops})
}

func (h *Handler) handleMapEvent(w http.ResponseWriter, r *http.Request) {
	var ev mapadapter.Event
	if err := decodeJSONStrict(r, &ev); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if err := ev.Validate(); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}
	if !h.ensureEngine(w, r) {
		return
	}

	res, err := h.engine.HandleMapEvent(r.Context(), ev)
	if err != nil {
		h.writeEngineError(w, r, err, map[string]any{"type": ev.Type})
		return
	}
	h.writeJSON(w, r, http.StatusOK, res)
}
