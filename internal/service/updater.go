package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/craftops/modserver/internal/config"
	"github.com/craftops/modserver/internal/ledger"
	"github.com/craftops/modserver/internal/model"
	"go.uber.org/zap"
)

const (
	maxLogEntries  = 1000
	trimLogEntries = 500
	trimInterval   = 24 * time.Hour
)

// AuditSink records reconciliation outcomes durably. The in-memory ring
// stays authoritative for the API; the sink is history that survives
// restarts.
type AuditSink interface {
	Append(entry model.UpdateLogEntry) error
	Prune(keep int) error
}

// Updater periodically reconciles auto-update-enabled mods with the
// registry. At most one reconciliation batch runs at a time; overlapping
// triggers are dropped, never queued.
type Updater struct {
	cfg     *config.Config
	logger  *zap.Logger
	manager *Manager
	ledger  *ledger.Ledger
	audit   AuditSink
	log     *updateLog

	inProgress atomic.Bool
	wg         sync.WaitGroup

	mu        sync.Mutex
	running   bool
	stop      chan struct{}
	lastCheck *time.Time
	nextCheck *time.Time
}

// NewUpdater creates the reconciliation scheduler. audit may be nil.
func NewUpdater(cfg *config.Config, logger *zap.Logger, manager *Manager, led *ledger.Ledger, audit AuditSink) *Updater {
	return &Updater{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		ledger:  led,
		audit:   audit,
		log:     newUpdateLog(maxLogEntries),
	}
}

// Start schedules the recurring reconciliation and log-trim jobs. It is
// a no-op when auto-update is disabled or the updater already runs.
func (u *Updater) Start() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.cfg.Updater.Enabled {
		u.logger.Info("auto-update disabled in configuration")
		return
	}
	if u.running {
		u.logger.Warn("updater already running")
		return
	}

	interval := time.Duration(u.cfg.Updater.IntervalHours) * time.Hour
	next := time.Now().Add(interval)
	u.nextCheck = &next
	u.stop = make(chan struct{})
	u.running = true

	u.wg.Add(1)
	go u.loop(u.stop, interval)

	u.logger.Info("updater started", zap.Int("interval_hours", u.cfg.Updater.IntervalHours))
}

// Stop cancels the scheduled jobs and joins any in-flight batch
func (u *Updater) Stop() {
	u.mu.Lock()
	if u.running {
		close(u.stop)
		u.running = false
		u.nextCheck = nil
	}
	u.mu.Unlock()

	u.wg.Wait()
	u.logger.Info("updater stopped")
}

// loop drives the reconciliation and trim tickers until stop closes
func (u *Updater) loop(stop chan struct{}, interval time.Duration) {
	defer u.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	trim := time.NewTicker(trimInterval)
	defer trim.Stop()

	for {
		select {
		case <-ticker.C:
			u.runBatch()
			u.mu.Lock()
			next := time.Now().Add(interval)
			u.nextCheck = &next
			u.mu.Unlock()
		case <-trim.C:
			u.log.trim(trimLogEntries)
			if u.audit != nil {
				if err := u.audit.Prune(trimLogEntries); err != nil {
					u.logger.Error("failed to prune audit store", zap.Error(err))
				}
			}
		case <-stop:
			return
		}
	}
}

// RunNow launches a reconciliation batch without blocking the caller.
// It reports false when a batch is already in progress; the trigger is
// then dropped with no side effects.
func (u *Updater) RunNow() bool {
	if u.inProgress.Load() {
		return false
	}

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.runBatch()
	}()
	return true
}

// runBatch reconciles every auto-update-enabled mod, sequentially. A
// second invocation while one runs is dropped entirely.
func (u *Updater) runBatch() {
	if !u.inProgress.CompareAndSwap(false, true) {
		u.logger.Warn("reconciliation already in progress, dropping run")
		return
	}
	defer u.inProgress.Store(false)

	now := time.Now().UTC()
	u.mu.Lock()
	u.lastCheck = &now
	u.mu.Unlock()

	var batch []model.InstalledMod
	for _, mod := range u.manager.Installed() {
		if mod.AutoUpdate {
			batch = append(batch, mod)
		}
	}

	u.logger.Info("reconciliation started", zap.Int("mods", len(batch)))

	for i, mod := range batch {
		u.record(u.reconcile(mod))

		if i < len(batch)-1 && u.cfg.Updater.PauseSeconds > 0 {
			time.Sleep(u.cfg.Updater.Pause())
		}
	}

	if err := u.ledger.SetLastCheck(now); err != nil {
		u.logger.Error("failed to persist last check time", zap.Error(err))
	}

	u.logger.Info("reconciliation finished", zap.Int("mods", len(batch)))
}

// reconcile updates a single mod and builds its audit entry. Errors are
// captured in the entry, never propagated, so one failure cannot abort
// the batch.
func (u *Updater) reconcile(mod model.InstalledMod) model.UpdateLogEntry {
	entry := model.UpdateLogEntry{
		Timestamp:  time.Now().UTC(),
		ModSlug:    mod.Slug,
		OldVersion: mod.Version,
		NewVersion: mod.Version,
	}

	updated, err := u.manager.Update(context.Background(), mod.Slug)
	switch {
	case err != nil:
		entry.Status = "failed"
		entry.Message = err.Error()
		u.logger.Error("mod update failed", zap.String("slug", mod.Slug), zap.Error(err))
	case updated:
		if current, ok := u.ledger.Get(mod.Slug); ok {
			entry.NewVersion = current.Version
		}
		entry.Status = "success"
		entry.Message = "mod updated"
		u.logger.Info("mod updated",
			zap.String("slug", mod.Slug),
			zap.String("old", entry.OldVersion),
			zap.String("new", entry.NewVersion),
		)
	default:
		entry.Status = "skipped"
		entry.Message = "already up to date"
	}

	return entry
}

// record appends an outcome to the ring and the durable audit sink
func (u *Updater) record(entry model.UpdateLogEntry) {
	u.log.add(entry)
	if u.audit != nil {
		if err := u.audit.Append(entry); err != nil {
			u.logger.Error("failed to append audit record", zap.Error(err))
		}
	}
}

// Status reports the scheduler state
func (u *Updater) Status() model.UpdaterStatus {
	u.mu.Lock()
	defer u.mu.Unlock()

	lastCheck := u.lastCheck
	if lastCheck == nil {
		lastCheck = u.ledger.LastCheck()
	}

	return model.UpdaterStatus{
		Enabled:       u.cfg.Updater.Enabled,
		Running:       u.running,
		IntervalHours: u.cfg.Updater.IntervalHours,
		LastCheck:     lastCheck,
		NextCheck:     u.nextCheck,
		InProgress:    u.inProgress.Load(),
	}
}

// Logs returns the most recent audit entries, newest first
func (u *Updater) Logs(limit int) []model.UpdateLogEntry {
	return u.log.recent(limit)
}

// ClearLogs drops the in-memory audit ring
func (u *Updater) ClearLogs() {
	u.log.clear()
	u.logger.Info("update logs cleared")
}

// updateLog is a fixed-capacity ring of reconciliation outcomes.
type updateLog struct {
	mu      sync.Mutex
	entries []model.UpdateLogEntry
	max     int
}

func newUpdateLog(max int) *updateLog {
	return &updateLog{max: max}
}

func (ul *updateLog) add(entry model.UpdateLogEntry) {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	ul.entries = append(ul.entries, entry)
	if len(ul.entries) > ul.max {
		ul.entries = ul.entries[len(ul.entries)-ul.max:]
	}
}

// recent returns up to limit entries, newest first
func (ul *updateLog) recent(limit int) []model.UpdateLogEntry {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	n := len(ul.entries)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]model.UpdateLogEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, ul.entries[i])
	}
	return out
}

func (ul *updateLog) trim(keep int) {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	if len(ul.entries) > keep {
		ul.entries = ul.entries[len(ul.entries)-keep:]
	}
}

func (ul *updateLog) clear() {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	ul.entries = nil
}
