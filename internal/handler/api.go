package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/craftops/modserver/internal/config"
	"github.com/craftops/modserver/internal/model"
	"github.com/craftops/modserver/internal/registry"
	"github.com/craftops/modserver/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// API handles HTTP requests
type API struct {
	cfg         *config.Config
	logger      *zap.Logger
	manager     *service.Manager
	updater     *service.Updater
	rateLimiter *RateLimiter
	started     time.Time
}

// NewAPI creates a new API instance
func NewAPI(cfg *config.Config, logger *zap.Logger, manager *service.Manager, updater *service.Updater) *API {
	return &API{
		cfg:         cfg,
		logger:      logger,
		manager:     manager,
		updater:     updater,
		rateLimiter: NewRateLimiter(float64(cfg.RateLimit.RPS), cfg.RateLimit.Burst),
		started:     time.Now(),
	}
}

// Close closes the API and its resources
func (a *API) Close() error {
	a.rateLimiter.Close()
	return nil
}

// RegisterRoutes registers the API routes
func (a *API) RegisterRoutes(r chi.Router) {
	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Get("/health", a.health)

	// API routes with rate limiting
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.rateLimiter.RateLimit)

		r.Post("/mods/install", a.installMod)
		r.Get("/mods", a.listMods)
		r.Get("/mods/search", a.searchMods)
		r.Delete("/mods/{slug}", a.removeMod)
		r.Post("/mods/{slug}/update", a.updateMod)
		r.Get("/server/info", a.serverInfo)

		r.Get("/updater/status", a.updaterStatus)
		r.Get("/updater/logs", a.updaterLogs)

		// Mutating updater controls are localhost only
		r.Group(func(r chi.Router) {
			r.Use(LocalOnly)
			r.Post("/updater/run", a.updaterRun)
			r.Post("/updater/enable", a.updaterEnable)
			r.Post("/updater/disable", a.updaterDisable)
			r.Delete("/updater/logs", a.updaterClearLogs)
		})
	})
}

// health reports liveness
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": time.Since(a.started).Seconds(),
	})
}

// installMod installs a mod and its dependencies
func (a *API) installMod(w http.ResponseWriter, r *http.Request) {
	req := model.InstallRequest{AutoUpdate: true}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mod == "" {
		a.writeError(w, http.StatusBadRequest, "mod is required")
		return
	}

	a.logger.Info("install requested", zap.String("mod", req.Mod), zap.Bool("force", req.ForceUpdate))

	result, err := a.manager.Install(r.Context(), req.Mod, req.ForceUpdate, req.AutoUpdate)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

// listMods returns the installed mods
func (a *API) listMods(w http.ResponseWriter, r *http.Request) {
	mods := a.manager.Installed()
	env := a.manager.Environment()

	a.writeJSON(w, http.StatusOK, model.ModListResponse{
		Mods:             mods,
		Total:            len(mods),
		MinecraftVersion: env.Version,
		ModLoader:        env.Loader,
	})
}

// searchMods proxies a project search to the registry
func (a *API) searchMods(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		a.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	hits, err := a.manager.Search(r.Context(), query, limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"hits":  hits,
		"total": len(hits),
	})
}

// removeMod removes a mod by slug
func (a *API) removeMod(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	removed, err := a.manager.Remove(slug)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if !removed {
		a.writeError(w, http.StatusNotFound, "mod not found: "+slug)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "mod removed: " + slug,
	})
}

// updateMod updates a single mod by slug
func (a *API) updateMod(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	updated, err := a.manager.Update(r.Context(), slug)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if !updated {
		a.writeJSON(w, http.StatusOK, map[string]string{
			"status":  "skipped",
			"message": "mod already current or not installed: " + slug,
		})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "mod updated: " + slug,
	})
}

// serverInfo describes the managed server
func (a *API) serverInfo(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.manager.Summary())
}

// updaterStatus reports the reconciliation scheduler state
func (a *API) updaterStatus(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.updater.Status())
}

// updaterRun triggers a reconciliation batch without blocking
func (a *API) updaterRun(w http.ResponseWriter, r *http.Request) {
	if !a.updater.RunNow() {
		a.writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "busy",
			"message": "an update check is already in progress",
		})
		return
	}
	a.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": "update check has been triggered",
	})
}

// updaterEnable starts the scheduler
func (a *API) updaterEnable(w http.ResponseWriter, r *http.Request) {
	a.updater.Start()
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// updaterDisable stops the scheduler
func (a *API) updaterDisable(w http.ResponseWriter, r *http.Request) {
	a.updater.Stop()
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// updaterLogs returns recent audit entries
func (a *API) updaterLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}

	logs := a.updater.Logs(limit)
	a.writeJSON(w, http.StatusOK, model.UpdateLogsResponse{
		Logs:  logs,
		Total: len(logs),
	})
}

// updaterClearLogs drops the in-memory audit ring
func (a *API) updaterClearLogs(w http.ResponseWriter, r *http.Request) {
	a.updater.ClearLogs()
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// writeServiceError maps core errors onto HTTP status codes
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	a.logger.Error("request failed", zap.Error(err))

	switch {
	case registry.IsNotFound(err):
		a.writeError(w, http.StatusNotFound, err.Error())
	case service.IsNoCompatibleVersion(err):
		a.writeError(w, http.StatusBadRequest, err.Error())
	case registry.IsRegistryError(err):
		a.writeError(w, http.StatusBadGateway, err.Error())
	default:
		a.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, model.ErrorResponse{Status: "error", Message: message})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Error("failed to encode response", zap.Error(err))
	}
}
