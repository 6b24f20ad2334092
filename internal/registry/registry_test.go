package registry_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/craftops/modserver/internal/model"
	"github.com/craftops/modserver/internal/registry"
	"go.uber.org/zap"
)

// fakeRegistry serves a Modrinth-shaped API from an in-memory project set.
type fakeRegistry struct {
	srv      *httptest.Server
	projects map[string]*fakeProject // keyed by slug and by id
	requests atomic.Int64
}

type fakeProject struct {
	project  model.Project
	versions []model.Version
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	f := &fakeRegistry{projects: make(map[string]*fakeProject)}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
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
		case len(parts) == 1 && parts[0] == "search":
			var hits []registry.SearchResult
			for slug, p := range f.projects {
				if slug != p.project.Slug {
					continue
				}
				if strings.Contains(p.project.Title, r.URL.Query().Get("query")) {
					hits = append(hits, registry.SearchResult{
						ProjectID: p.project.ID,
						Slug:      p.project.Slug,
						Title:     p.project.Title,
					})
				}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"hits": hits})
		case len(parts) == 2 && parts[0] == "files":
			w.Write([]byte("jar-bytes-" + parts[1]))
		default:
			http.NotFound(w, r)
		}
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// add registers a project reachable by slug and by id
func (f *fakeRegistry) add(p model.Project, versions ...model.Version) {
	fp := &fakeProject{project: p, versions: versions}
	f.projects[p.Slug] = fp
	f.projects[p.ID] = fp
}

func (f *fakeRegistry) client(t *testing.T, ttl time.Duration) *registry.Client {
	t.Helper()
	return registry.NewClient(registry.Options{
		BaseURL:   f.srv.URL,
		UserAgent: "modserver-test",
		CacheTTL:  ttl,
		Timeout:   5 * time.Second,
	}, zap.NewNop())
}

// version builds a release version with one primary jar file
func version(id, projectID, number string, published time.Time, deps ...model.Dependency) model.Version {
	return model.Version{
		ID:            id,
		ProjectID:     projectID,
		VersionNumber: number,
		VersionType:   model.VersionTypeRelease,
		GameVersions:  []string{"1.20.1"},
		Loaders:       []string{"fabric"},
		DatePublished: published,
		Dependencies:  deps,
		Files: []model.VersionFile{
			{URL: "", Filename: projectID + "-" + number + ".jar", Size: 1024, Primary: true},
		},
	}
}
