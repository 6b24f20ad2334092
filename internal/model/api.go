package model

import "time"

// InstallRequest is the body of an install call.
type InstallRequest struct {
	Mod         string `json:"mod"`
	ForceUpdate bool   `json:"force_update"`
	AutoUpdate  bool   `json:"auto_update"`
}

// InstallResult aggregates the outcome of one install call by slug.
type InstallResult struct {
	Status    string   `json:"status"`
	Installed []string `json:"installed"`
	Updated   []string `json:"updated"`
	Skipped   []string `json:"skipped"`
	Message   string   `json:"message,omitempty"`
}

// ModListResponse lists the installed mods.
type ModListResponse struct {
	Mods             []InstalledMod `json:"mods"`
	Total            int            `json:"total"`
	MinecraftVersion string         `json:"minecraft_version"`
	ModLoader        Loader         `json:"mod_loader"`
}

// ServerSummary describes the managed server environment.
type ServerSummary struct {
	MinecraftVersion  string     `json:"minecraft_version"`
	ModLoader         Loader     `json:"mod_loader"`
	ServerPath        string     `json:"server_path"`
	ModsCount         int        `json:"mods_count"`
	AutoUpdateEnabled bool       `json:"auto_update_enabled"`
	LastUpdateCheck   *time.Time `json:"last_update_check,omitempty"`
}

// UpdaterStatus reports the reconciliation scheduler state.
type UpdaterStatus struct {
	Enabled       bool       `json:"enabled"`
	Running       bool       `json:"running"`
	IntervalHours int        `json:"interval_hours"`
	LastCheck     *time.Time `json:"last_check,omitempty"`
	NextCheck     *time.Time `json:"next_check,omitempty"`
	InProgress    bool       `json:"in_progress"`
}

// UpdateLogEntry is one audit record of a reconciliation outcome.
type UpdateLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	ModSlug    string    `json:"mod_slug"`
	OldVersion string    `json:"old_version,omitempty"`
	NewVersion string    `json:"new_version"`
	Status     string    `json:"status"` // success, skipped, failed
	Message    string    `json:"message,omitempty"`
}

// UpdateLogsResponse wraps the audit log listing.
type UpdateLogsResponse struct {
	Logs  []UpdateLogEntry `json:"logs"`
	Total int              `json:"total"`
}

// ErrorResponse is the generic failure body.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
