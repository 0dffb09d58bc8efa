package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fleetmap/core-go/internal/fleet"
	"fleetmap/core-go/internal/mapsync"
)

func (h *Handler) handleListAssets(w http.ResponseWriter, r *http.Request) {
	if !h.ensureEngine(w, r) {
		return
	}

	q := r.URL.Query()
	filter := mapsync.AssetFilter{
		ZoneID: strings.TrimSpace(q.Get("zone")),
		Query:  q.Get("q"),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := fleet.ParseStatus(raw)
		if !ok {
			h.writeError(w, r, http.StatusBadRequest, "validation_failed", "unknown status", map[string]any{
				"status":  raw,
				"allowed": fleet.AllStatuses(),
			})
			return
		}
		filter.Status = status
	}

	h.writeJSON(w, r, http.StatusOK, h.engine.Assets(filter))
}

func (h *Handler) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if !h.ensureEngine(w, r) {
		return
	}

	if err := h.engine.DeleteAsset(r.Context(), id); err != nil {
		h.writeEngineError(w, r, err, map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListZones(w http.ResponseWriter, r *http.Request) {
	if !h.ensureEngine(w, r) {
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.engine.Zones())
}

func (h *Handler) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if !h.ensureEngine(w, r) {
		return
	}

	res, err := h.engine.DeleteZone(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, r, err, map[string]any{"id": id})
		return
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

type selectionUpdate struct {
	AssetID string `json:"asset_id"`
}

func (h *Handler) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	if !h.ensureEngine(w, r) {
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.engine.Selection())
}

func (h *Handler) handlePutSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionUpdate
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.AssetID) == "" {
		h.writeError(w, r, http.StatusBadRequest, "validation_failed", "asset_id is required", nil)
		return
	}
	if !h.ensureEngine(w, r) {
		return
	}

	if err := h.engine.Select(req.AssetID); err != nil {
		h.writeEngineError(w, r, err, map[string]any{"asset_id": req.AssetID})
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.engine.Selection())
}

func (h *Handler) handleDeleteSelection(w http.ResponseWriter, r *http.Request) {
	if !h.ensureEngine(w, r) {
		return
	}
	h.engine.ClearSelection()
	h.writeJSON(w, r, http.StatusOK, h.engine.Selection())
}
