package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"haventory/internal/config"
	"haventory/internal/middleware"
	"haventory/internal/protocol"
	"haventory/internal/service"
	"haventory/internal/subscription"
)

type Handler struct {
	Router chi.Router
}

// NewHandler разводящий для хендлеров
func NewHandler(
	svc *service.InventoryService,
	router *subscription.Router,
	logger *zap.SugaredLogger,
	cfg *config.Config,
) *Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithGzip)
	r.Use(middleware.WithLogging)

	d := NewDispatcher(svc, router, logger, cfg.BuildVersion)
	ws := NewWSHandler(d, router, logger)
	probe := &probeHandler{svc: svc, logger: logger, version: cfg.BuildVersion}

	// Channel
	r.Get("/api/ws", ws.Serve)

	// Probes
	r.Get("/api/health", probe.Health)
	r.Get("/api/stats", probe.Stats)
	r.Get("/api/version", probe.Version)

	return &Handler{Router: r}
}

// probeHandler — read-only HTTP эндпоинты для мониторинга.
type probeHandler struct {
	svc     *service.InventoryService
	logger  *zap.SugaredLogger
	version string
}

func (h *probeHandler) Health(w http.ResponseWriter, r *http.Request) {
	rep := h.svc.Health()
	status := http.StatusOK
	if !rep.Healthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, rep)
}

func (h *probeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Counts())
}

func (h *probeHandler) Version(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, protocol.VersionInfo{ServerVersion: h.version, SchemaVersion: protocol.SchemaVersion})
}

func (h *probeHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Errorw("failed to encode response", "error", err)
	}
}
