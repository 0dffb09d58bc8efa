package httpapi

import (
	"net/http"

	"fleetmap/core-go/internal/fleet"
)

func (h *Handler) handleGetPlacement(w http.ResponseWriter, r *http.Request) {
	if !h.ensureEngine(w, r) {
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.engine.Placement())
}

func (h *Handler) handleBeginAssetPlacement(w http.ResponseWriter, r *http.Request) {
	var draft fleet.AssetDraft
	if err := decodeJSONStrict(r, &draft); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if !h.ensureEngine(w, r) {
		return
	}

	if _, err := h.engine.BeginAssetPlacement(draft); err != nil {
		h.writeEngineError(w, r, err, nil)
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.engine.Placement())
}

func (h *Handler) handleBeginZonePlacement(w http.ResponseWriter, r *http.Request) {
	var draft fleet.ZoneDraft
	if err := decodeJSONStrict(r, &draft); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if !h.ensureEngine(w, r) {
		return
	}

	if _, err := h.engine.BeginZonePlacement(draft); err != nil {
		h.writeEngineError(w, r, err, nil)
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.engine.Placement())
}

func (h *Handler) handleCancelPlacement(w http.ResponseWriter, r *http.Request) {
	if !h.ensureEngine(w, r) {
		return
	}
	h.engine.CancelPlacement()
	h.writeJSON(w, r, http.StatusOK, h.engine.Placement())
}
