package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/craftops/modserver/internal/config"
	"github.com/craftops/modserver/internal/handler"
	"github.com/craftops/modserver/internal/ledger"
	"github.com/craftops/modserver/internal/minecraft"
	"github.com/craftops/modserver/internal/model"
	"github.com/craftops/modserver/internal/registry"
	"github.com/craftops/modserver/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (chi.Router, *ledger.Ledger) {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Minecraft.RootPath = root
	cfg.Minecraft.BackupState = false
	require.NoError(t, os.MkdirAll(cfg.ModsPath(), 0755))

	log := zap.NewNop()
	client := registry.NewClient(registry.Options{
		BaseURL: "http://127.0.0.1:1",
		Timeout: time.Second,
	}, log)

	led, err := ledger.Open(cfg.StatePath(), false, log)
	require.NoError(t, err)

	env := &minecraft.Environment{Version: "1.20.1", Loader: model.LoaderFabric}
	manager, err := service.NewManager(cfg, log, client, led, env)
	require.NoError(t, err)

	updater := service.NewUpdater(cfg, log, manager, led, nil)
	t.Cleanup(updater.Stop)

	api := handler.NewAPI(cfg, log, manager, updater)
	t.Cleanup(func() { api.Close() })

	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r, led
}

func doRequest(r chi.Router, method, path, body, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(r, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
}

func TestListModsEmpty(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(r, http.MethodGet, "/api/v1/mods", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.ModListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 0, body.Total)
	require.Equal(t, "1.20.1", body.MinecraftVersion)
	require.Equal(t, model.LoaderFabric, body.ModLoader)
}

func TestListModsFromLedger(t *testing.T) {
	r, led := newTestRouter(t)
	require.NoError(t, led.Add(model.InstalledMod{Slug: "sodium", Version: "1.0.0", FileName: "sodium.jar"}))

	rec := doRequest(r, http.MethodGet, "/api/v1/mods", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.ModListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Total)
	require.Equal(t, "sodium", body.Mods[0].Slug)
}

func TestInstallRequiresMod(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(r, http.MethodPost, "/api/v1/mods/install", `{}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveUnknownMod(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(r, http.MethodDelete, "/api/v1/mods/ghost", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdaterStatus(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(r, http.MethodGet, "/api/v1/updater/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.UpdaterStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Enabled)
	require.False(t, body.InProgress)
}

func TestUpdaterRunLocalOnly(t *testing.T) {
	r, _ := newTestRouter(t)

	// httptest requests come from a non-local address by default.
	rec := doRequest(r, http.MethodPost, "/api/v1/updater/run", "", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(r, http.MethodPost, "/api/v1/updater/run", "", "127.0.0.1:12345")
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestUpdaterLogsEmpty(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(r, http.MethodGet, "/api/v1/updater/logs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.UpdateLogsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 0, body.Total)
}
