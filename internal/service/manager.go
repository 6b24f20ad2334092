package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/craftops/modserver/internal/config"
	"github.com/craftops/modserver/internal/ledger"
	"github.com/craftops/modserver/internal/minecraft"
	"github.com/craftops/modserver/internal/model"
	"github.com/craftops/modserver/internal/registry"
	"go.uber.org/zap"
)

// Manager installs, updates and removes mods for one server. All
// mutating operations are serialized by a single mutex so a manual call
// and a scheduled reconciliation never race on a ledger entry or an
// artifact file.
type Manager struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   *registry.Client
	resolver *registry.Resolver
	ledger   *ledger.Ledger
	env      *minecraft.Environment
	mu       sync.Mutex
}

// NewManager creates a mod manager for the probed server environment
func NewManager(cfg *config.Config, logger *zap.Logger, client *registry.Client, led *ledger.Ledger, env *minecraft.Environment) (*Manager, error) {
	if env == nil || env.Version == "" {
		return nil, ErrNotInitialized
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		resolver: registry.NewResolver(client, logger),
		ledger:   led,
		env:      env,
	}, nil
}

// Environment returns the fixed install target
func (m *Manager) Environment() minecraft.Environment {
	return *m.env
}

// Install resolves slugOrURL and installs the full plan: the mod plus
// its required and optional dependencies. A failed download aborts the
// call; mods installed earlier in the same call are kept.
func (m *Manager) Install(ctx context.Context, slugOrURL string, force, autoUpdate bool) (*model.InstallResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.install(ctx, slugOrURL, force, autoUpdate)
}

// install runs the resolve/download/record pipeline. Callers hold m.mu.
func (m *Manager) install(ctx context.Context, slugOrURL string, force, autoUpdate bool) (*model.InstallResult, error) {
	plan, err := m.resolver.Resolve(ctx, slugOrURL, m.env.Version, m.env.Loader)
	if err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		return nil, &NoCompatibleVersionError{Slug: slugOrURL, GameVersion: m.env.Version}
	}

	result := &model.InstallResult{
		Status:    "success",
		Installed: []string{},
		Updated:   []string{},
		Skipped:   []string{},
	}

	for _, node := range plan {
		slug := node.Project.Slug

		if node.File == nil {
			m.logger.Warn("no downloadable file, skipping", zap.String("slug", slug))
			continue
		}

		if m.isInstalled(slug) && !force {
			if existing, ok := m.ledger.Get(slug); ok && existing.Version == node.Version.VersionNumber {
				result.Skipped = append(result.Skipped, slug)
				m.logger.Info("mod already current", zap.String("slug", slug), zap.String("version", existing.Version))
				continue
			}
		}

		if m.isInstalled(slug) {
			m.removeArtifact(slug)
			result.Updated = append(result.Updated, slug)
		} else {
			result.Installed = append(result.Installed, slug)
		}

		dest := m.artifactPath(node.File.Filename)
		if !m.client.Download(ctx, node.File, dest) {
			return nil, &DownloadError{Filename: node.File.Filename}
		}

		mod := model.InstalledMod{
			Slug:              slug,
			Name:              node.Project.Title,
			Version:           node.Version.VersionNumber,
			FileName:          node.File.Filename,
			InstalledAt:       time.Now().UTC(),
			AutoUpdate:        autoUpdate,
			Dependencies:      planSlugsExcept(plan, slug),
			MinecraftVersions: node.Version.GameVersions,
			ModLoader:         m.env.Loader,
			ProjectID:         node.Project.ID,
			VersionID:         node.Version.ID,
			FileSize:          node.File.Size,
		}
		if err := m.ledger.Add(mod); err != nil {
			return nil, fmt.Errorf("failed to record %s: %w", slug, err)
		}

		m.logger.Info("mod installed",
			zap.String("slug", slug),
			zap.String("version", node.Version.VersionNumber),
		)
	}

	return result, nil
}

// Update brings one installed mod to its best compatible version. It
// returns false without error when the mod is unknown or already
// current.
func (m *Manager) Update(ctx context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, ok := m.ledger.Get(slug)
	if !ok {
		m.logger.Warn("update requested for unknown mod", zap.String("slug", slug))
		return false, nil
	}

	versions, err := m.client.GetVersions(ctx, slug, []string{m.env.Version}, []string{string(m.env.Loader)})
	if err != nil {
		return false, err
	}

	compatible := registry.FilterCompatible(versions, m.env.Version, m.env.Loader, true)
	if len(compatible) == 0 {
		m.logger.Warn("no compatible version to update to", zap.String("slug", slug))
		return false, nil
	}

	if compatible[0].VersionNumber == mod.Version {
		return false, nil
	}

	if _, err := m.install(ctx, slug, true, mod.AutoUpdate); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes a mod's artifact and its ledger entry. It reports
// whether the mod was known.
func (m *Manager) Remove(slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, ok := m.ledger.Get(slug)
	if !ok {
		return false, nil
	}

	path := m.artifactPath(mod.FileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to delete %s: %w", path, err)
	}

	if _, err := m.ledger.Remove(slug); err != nil {
		return false, err
	}

	m.logger.Info("mod removed", zap.String("slug", slug))
	return true, nil
}

// Installed lists all mods recorded in the ledger
func (m *Manager) Installed() []model.InstalledMod {
	return m.ledger.List()
}

// Search proxies a project search to the registry
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]registry.SearchResult, error) {
	return m.client.Search(ctx, query, limit)
}

// Summary describes the managed server and its install state
func (m *Manager) Summary() model.ServerSummary {
	return model.ServerSummary{
		MinecraftVersion:  m.env.Version,
		ModLoader:         m.env.Loader,
		ServerPath:        m.cfg.Minecraft.RootPath,
		ModsCount:         m.ledger.Count(),
		AutoUpdateEnabled: m.cfg.Updater.Enabled,
		LastUpdateCheck:   m.ledger.LastCheck(),
	}
}

// isInstalled reports whether slug has a ledger entry whose artifact is
// actually on disk.
func (m *Manager) isInstalled(slug string) bool {
	mod, ok := m.ledger.Get(slug)
	if !ok {
		return false
	}
	_, err := os.Stat(m.artifactPath(mod.FileName))
	return err == nil
}

// removeArtifact deletes the on-disk file recorded for slug
func (m *Manager) removeArtifact(slug string) {
	mod, ok := m.ledger.Get(slug)
	if !ok {
		return
	}
	path := m.artifactPath(mod.FileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Error("failed to delete old artifact", zap.String("path", path), zap.Error(err))
		return
	}
	m.logger.Info("old artifact deleted", zap.String("path", path))
}

func (m *Manager) artifactPath(filename string) string {
	return filepath.Join(m.cfg.ModsPath(), filename)
}

// planSlugsExcept returns every plan slug except self
func planSlugsExcept(plan []model.Resolution, self string) []string {
	deps := make([]string, 0, len(plan))
	for _, node := range plan {
		if node.Project.Slug != self {
			deps = append(deps, node.Project.Slug)
		}
	}
	return deps
}
