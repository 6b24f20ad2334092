package service_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/craftops/modserver/internal/config"
	"github.com/craftops/modserver/internal/ledger"
	"github.com/craftops/modserver/internal/minecraft"
	"github.com/craftops/modserver/internal/model"
	"github.com/craftops/modserver/internal/registry"
	"github.com/craftops/modserver/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRegistry is an in-memory Modrinth-shaped API with downloadable
// files.
type fakeRegistry struct {
	srv *httptest.Server

	mu       sync.Mutex
	projects map[string]*fakeProject
	delay    time.Duration
}

type fakeProject struct {
	project  model.Project
	versions []model.Version
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	f := &fakeRegistry{projects: make(map[string]*fakeProject)}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		delay := f.delay
		f.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case len(parts) == 2 && parts[0] == "project":
			if p, ok := f.projects[parts[1]]; ok {
				json.NewEncoder(w).Encode(p.project)
				return
			}
			http.NotFound(w, r)
		case len(parts) == 3 && parts[0] == "project" && parts[2] == "version":
			if p, ok := f.projects[parts[1]]; ok {
				json.NewEncoder(w).Encode(p.versions)
				return
			}
			http.NotFound(w, r)
		case len(parts) == 2 && parts[0] == "files":
			w.Write([]byte("content-of-" + parts[1]))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

// add registers a project under both its slug and id; empty file URLs
// are pointed at the fake download endpoint.
func (f *fakeRegistry) add(p model.Project, versions ...model.Version) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range versions {
		for j := range versions[i].Files {
			if versions[i].Files[j].URL == "" {
				versions[i].Files[j].URL = f.srv.URL + "/files/" + versions[i].Files[j].Filename
			}
		}
	}
	fp := &fakeProject{project: p, versions: versions}
	f.projects[p.Slug] = fp
	f.projects[p.ID] = fp
}

func (f *fakeRegistry) remove(slugOrID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[slugOrID]; ok {
		delete(f.projects, p.project.Slug)
		delete(f.projects, p.project.ID)
	}
}

func (f *fakeRegistry) setDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// release builds a release-tier version with one primary jar
func release(id, projectID, number string, deps ...model.Dependency) model.Version {
	return model.Version{
		ID:            id,
		ProjectID:     projectID,
		VersionNumber: number,
		VersionType:   model.VersionTypeRelease,
		GameVersions:  []string{"1.20.1"},
		Loaders:       []string{"fabric"},
		DatePublished: time.Now().UTC(),
		Dependencies:  deps,
		Files: []model.VersionFile{
			{Filename: projectID + "-" + number + ".jar", Size: 64, Primary: true},
		},
	}
}

// testEnv wires a manager against a fake registry and a temp server root.
type testEnv struct {
	cfg      *config.Config
	registry *fakeRegistry
	client   *registry.Client
	ledger   *ledger.Ledger
	manager  *service.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Minecraft.RootPath = root
	cfg.Minecraft.BackupState = false
	cfg.Updater.PauseSeconds = 0
	require.NoError(t, os.MkdirAll(cfg.ModsPath(), 0755))

	f := newFakeRegistry(t)
	client := registry.NewClient(registry.Options{
		BaseURL:   f.srv.URL,
		UserAgent: "modserver-test",
		CacheTTL:  time.Minute,
		Timeout:   5 * time.Second,
	}, zap.NewNop())

	led, err := ledger.Open(cfg.StatePath(), cfg.Minecraft.BackupState, zap.NewNop())
	require.NoError(t, err)

	env := &minecraft.Environment{Version: "1.20.1", Loader: model.LoaderFabric}
	manager, err := service.NewManager(cfg, zap.NewNop(), client, led, env)
	require.NoError(t, err)

	return &testEnv{cfg: cfg, registry: f, client: client, ledger: led, manager: manager}
}

func (e *testEnv) artifactExists(t *testing.T, filename string) bool {
	t.Helper()
	_, err := os.Stat(e.cfg.ModsPath() + "/" + filename)
	return err == nil
}
