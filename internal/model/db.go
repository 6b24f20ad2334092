package model

import (
	"time"
)

// DBUpdateLog represents an audit record in the database
type DBUpdateLog struct {
	ID         int64     `db:"id"`
	Timestamp  time.Time `db:"ts"`
	ModSlug    string    `db:"mod_slug"`
	OldVersion string    `db:"old_version"`
	NewVersion string    `db:"new_version"`
	Status     string    `db:"status"`
	Message    string    `db:"message"`
}

// Schema contains the SQL schema for the database
const Schema = `
CREATE TABLE IF NOT EXISTS update_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts TIMESTAMP NOT NULL,
    mod_slug TEXT NOT NULL,
    old_version TEXT NOT NULL DEFAULT '',
    new_version TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_update_logs_ts ON update_logs(ts);
CREATE INDEX IF NOT EXISTS idx_update_logs_slug ON update_logs(mod_slug);
`
