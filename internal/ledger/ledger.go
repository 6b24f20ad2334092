package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/craftops/modserver/internal/model"
	"go.uber.org/zap"
)

const schemaVersion = 1

// Metadata carries ledger-level bookkeeping.
type Metadata struct {
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastUpdateCheck *time.Time `json:"last_update_check,omitempty"`
}

type state struct {
	SchemaVersion int                           `json:"schema_version"`
	Mods          map[string]model.InstalledMod `json:"mods"`
	Metadata      Metadata                      `json:"metadata"`
}

// Ledger is the durable record of installed mods, keyed by slug. Every
// mutation is persisted before it returns; the previous good copy is
// kept as a sibling backup when enabled.
type Ledger struct {
	path   string
	backup bool
	logger *zap.Logger

	mu    sync.Mutex
	state state
}

// Open loads the ledger at path, creating an empty one when no file
// exists. A file that fails to parse is quarantined to a timestamped
// backup and replaced by an empty ledger; corruption never fails the
// caller.
func Open(path string, backup bool, logger *zap.Logger) (*Ledger, error) {
	l := &Ledger{
		path:   path,
		backup: backup,
		logger: logger,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Info("no ledger found, creating a new one", zap.String("path", path))
		l.state = emptyState()
		if err := l.save(); err != nil {
			return nil, err
		}
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil || st.Mods == nil {
		quarantine := fmt.Sprintf("%s.corrupt-%s", path, time.Now().Format("20060102-150405"))
		if werr := os.WriteFile(quarantine, data, 0644); werr != nil {
			logger.Error("failed to quarantine corrupt ledger", zap.Error(werr))
		} else {
			logger.Warn("ledger corrupt, quarantined and reinitialized",
				zap.String("backup", quarantine),
				zap.Error(err),
			)
		}
		l.state = emptyState()
		if err := l.save(); err != nil {
			return nil, err
		}
		return l, nil
	}

	l.state = st
	logger.Info("ledger loaded",
		zap.String("path", path),
		zap.Int("mods", len(st.Mods)),
	)
	return l, nil
}

func emptyState() state {
	now := time.Now().UTC()
	return state{
		SchemaVersion: schemaVersion,
		Mods:          make(map[string]model.InstalledMod),
		Metadata: Metadata{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Add upserts a mod by slug and persists
func (l *Ledger) Add(mod model.InstalledMod) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.Mods[mod.Slug] = mod
	return l.save()
}

// Remove deletes a mod by slug and persists. It reports whether the
// slug was present; an absent slug leaves the file untouched.
func (l *Ledger) Remove(slug string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.state.Mods[slug]; !ok {
		return false, nil
	}
	delete(l.state.Mods, slug)
	return true, l.save()
}

// Get returns the mod recorded for slug
func (l *Ledger) Get(slug string) (model.InstalledMod, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	mod, ok := l.state.Mods[slug]
	return mod, ok
}

// List returns all recorded mods ordered by slug
func (l *Ledger) List() []model.InstalledMod {
	l.mu.Lock()
	defer l.mu.Unlock()

	mods := make([]model.InstalledMod, 0, len(l.state.Mods))
	for _, mod := range l.state.Mods {
		mods = append(mods, mod)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Slug < mods[j].Slug })
	return mods
}

// Count returns the number of recorded mods
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state.Mods)
}

// Update applies mutate to the existing entry for slug and persists.
// It is a no-op when the slug is unknown.
func (l *Ledger) Update(slug string, mutate func(*model.InstalledMod)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	mod, ok := l.state.Mods[slug]
	if !ok {
		return nil
	}
	mutate(&mod)
	l.state.Mods[slug] = mod
	return l.save()
}

// SetLastCheck stamps the last reconciliation time and persists
func (l *Ledger) SetLastCheck(t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.Metadata.LastUpdateCheck = &t
	return l.save()
}

// LastCheck returns the last reconciliation time, if any
func (l *Ledger) LastCheck() *time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Metadata.LastUpdateCheck
}

// save rewrites the ledger file, preserving the previous copy first.
// Callers must hold l.mu.
func (l *Ledger) save() error {
	if l.backup {
		if data, err := os.ReadFile(l.path); err == nil {
			if err := os.WriteFile(l.path+".backup", data, 0644); err != nil {
				l.logger.Error("failed to write ledger backup", zap.Error(err))
			}
		}
	}

	l.state.Metadata.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(l.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}
