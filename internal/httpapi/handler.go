package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"fleetmap/core-go/internal/feed"
	"fleetmap/core-go/internal/fleet"
	"fleetmap/core-go/internal/mapadapter"
	"fleetmap/core-go/internal/mapsync"
	"fleetmap/core-go/internal/metrics"
	"fleetmap/core-go/internal/placement"
	"fleetmap/core-go/internal/spotlight"
)

// Engine is the slice of *mapsync.Engine the HTTP surface needs.
type Engine interface {
	Assets(f mapsync.AssetFilter) []mapsync.AssetView
	Zones() []mapsync.ZoneView
	Selection() mapsync.SelectionView
	Select(id string) error
	ClearSelection()
	Placement() mapsync.PlacementView
	BeginAssetPlacement(draft fleet.AssetDraft) (placement.Pending, error)
	BeginZonePlacement(draft fleet.ZoneDraft) (placement.Pending, error)
	CancelPlacement() bool
	HandleMapEvent(ctx context.Context, ev mapadapter.Event) (mapsync.EventResult, error)
	DeleteAsset(ctx context.Context, id string) error
	DeleteZone(ctx context.Context, id string) (mapsync.ZoneDeletion, error)
	Notifications() []mapsync.Notification
	Ping(ctx context.Context) error
	Synced() bool
}

// Scene is the read side of the rendered map.
type Scene interface {
	View() mapadapter.View
	OpsSince(since uint64) ([]mapadapter.Op, uint64, bool)
}

var (
	_ Engine = (*mapsync.Engine)(nil)
	_ Scene  = (*mapadapter.Scene)(nil)
)

type Handler struct {
	log     zerolog.Logger
	engine  Engine
	scene   Scene
	metrics *metrics.Metrics
}

func NewHandler(log zerolog.Logger, engine Engine, scene Scene, m *metrics.Metrics) *Handler {
	return &Handler{log: log, engine: engine, scene: scene, metrics: m}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/assets", func(r chi.Router) {
				r.Get("/", h.handleListAssets)
				r.Delete("/{id}", h.handleDeleteAsset)
			})

			r.Route("/zones", func(r chi.Router) {
				r.Get("/", h.handleListZones)
				r.Delete("/{id}", h.handleDeleteZone)
			})

			r.Route("/selection", func(r chi.Router) {
				r.Get("/", h.handleGetSelection)
				r.Put("/", h.handlePutSelection)
				r.Delete("/", h.handleDeleteSelection)
			})

			r.Route("/placement", func(r chi.Router) {
				r.Get("/", h.handleGetPlacement)
				r.Delete("/", h.handleCancelPlacement)
				r.Post("/asset", h.handleBeginAssetPlacement)
				r.Post("/zone", h.handleBeginZonePlacement)
			})

			r.Route("/map", func(r chi.Router) {
				r.Get("/scene", h.handleMapScene)
				r.Get("/ops", h.handleMapOps)
				r.Post("/events", h.handleMapEvent)
			})

			r.Get("/notifications", h.handleListNotifications)
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		duration := time.Since(start)
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), duration)

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, r, status, resp)
}

// writeEngineError maps engine errors onto the error envelope.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error, details map[string]any) {
	switch {
	case errors.Is(err, spotlight.ErrUnknownAsset):
		h.writeError(w, r, http.StatusNotFound, "not_found", "asset not found", details)
	case errors.Is(err, feed.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "not_found", "record not found", details)
	case errors.Is(err, placement.ErrPlacementPending):
		h.writeError(w, r, http.StatusConflict, "conflict", err.Error(), details)
	case errors.Is(err, placement.ErrZoneNameRequired),
		errors.Is(err, placement.ErrInvalidLocation),
		errors.Is(err, mapadapter.ErrInvalidEvent):
		h.writeError(w, r, http.StatusBadRequest, "validation_failed", err.Error(), details)
	case errors.Is(err, mapsync.ErrFeedWrite):
		h.writeError(w, r, http.StatusBadGateway, "feed_write_failed", "feed write failed", withError(details, err))
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func withError(details map[string]any, err error) map[string]any {
	out := map[string]any{"error": err.Error()}
	for k, v := range details {
		out[k] = v
	}
	return out
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) ensureEngine(w http.ResponseWriter, r *http.Request) bool {
	if h.engine == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "feed_unavailable", "engine not configured", nil)
		return false
	}
	return true
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.engine == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "feed_unavailable", "engine not configured", nil)
		return
	}

	if err := h.engine.Ping(ctx); err != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "feed_unavailable", "feed not ready", map[string]any{"error": err.Error()})
		return
	}
	if !h.engine.Synced() {
		h.writeError(w, r, http.StatusServiceUnavailable, "feed_unavailable", "waiting for initial feed snapshot", nil)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{"ready": true})
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	if !h.ensureEngine(w, r) {
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.engine.Notifications())
}
