package store

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/craftops/modserver/internal/model"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// AuditStore persists reconciliation outcomes in SQLite so the audit
// trail survives restarts.
type AuditStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditStore opens (and migrates) the audit database under dataPath
func NewAuditStore(dataPath string, logger *zap.Logger) (*AuditStore, error) {
	dbPath := filepath.Join(dataPath, "modserver.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(model.Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &AuditStore{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (s *AuditStore) Close() error {
	return s.db.Close()
}

// Append writes one reconciliation outcome
func (s *AuditStore) Append(entry model.UpdateLogEntry) error {
	query := `
		INSERT INTO update_logs (ts, mod_slug, old_version, new_version, status, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(
		query,
		entry.Timestamp,
		entry.ModSlug,
		entry.OldVersion,
		entry.NewVersion,
		entry.Status,
		entry.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to append update log: %w", err)
	}
	return nil
}

// Recent returns the newest records, newest first
func (s *AuditStore) Recent(limit int) ([]model.UpdateLogEntry, error) {
	query := `SELECT ts, mod_slug, old_version, new_version, status, message
		FROM update_logs ORDER BY id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query update logs: %w", err)
	}
	defer rows.Close()

	var entries []model.UpdateLogEntry
	for rows.Next() {
		var entry model.UpdateLogEntry
		err := rows.Scan(
			&entry.Timestamp,
			&entry.ModSlug,
			&entry.OldVersion,
			&entry.NewVersion,
			&entry.Status,
			&entry.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan update log: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Prune deletes everything but the newest keep records
func (s *AuditStore) Prune(keep int) error {
	query := `
		DELETE FROM update_logs
		WHERE id NOT IN (SELECT id FROM update_logs ORDER BY id DESC LIMIT ?)
	`
	res, err := s.db.Exec(query, keep)
	if err != nil {
		return fmt.Errorf("failed to prune update logs: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Info("audit store pruned", zap.Int64("deleted", n))
	}
	return nil
}
