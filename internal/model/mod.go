package model

import "time"

// Loader identifies the mod loader variant a server runs.
type Loader string

const (
	LoaderFabric Loader = "fabric"
	LoaderForge  Loader = "forge"
)

// Version stability tiers as reported by the registry.
const (
	VersionTypeRelease = "release"
	VersionTypeBeta    = "beta"
	VersionTypeAlpha   = "alpha"
)

// Dependency kinds declared on a registry version.
const (
	DependencyRequired     = "required"
	DependencyOptional     = "optional"
	DependencyIncompatible = "incompatible"
	DependencyEmbedded     = "embedded"
)

// Project is a mod project as served by the registry.
type Project struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Version is a specific release of a Project.
type Version struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id"`
	VersionNumber string        `json:"version_number"`
	VersionType   string        `json:"version_type"`
	GameVersions  []string      `json:"game_versions"`
	Loaders       []string      `json:"loaders"`
	DatePublished time.Time     `json:"date_published"`
	Dependencies  []Dependency  `json:"dependencies"`
	Files         []VersionFile `json:"files"`
}

// Dependency is a declared dependency of a Version on another Project.
type Dependency struct {
	ProjectID      string `json:"project_id"`
	VersionID      string `json:"version_id,omitempty"`
	DependencyType string `json:"dependency_type"`
}

// VersionFile is a downloadable artifact attached to a Version.
type VersionFile struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Primary  bool   `json:"primary"`
}

// Resolution is one node of a resolved install plan: the project, the
// chosen version and the file to download (nil when the version ships
// no usable file).
type Resolution struct {
	Project Project
	Version Version
	File    *VersionFile
}

// InstalledMod is the ledger record for a mod present on disk.
type InstalledMod struct {
	Slug              string    `json:"slug"`
	Name              string    `json:"name"`
	Version           string    `json:"version"`
	FileName          string    `json:"file_name"`
	InstalledAt       time.Time `json:"installed_at"`
	AutoUpdate        bool      `json:"auto_update"`
	Dependencies      []string  `json:"dependencies"`
	MinecraftVersions []string  `json:"minecraft_versions"`
	ModLoader         Loader    `json:"mod_loader"`
	ProjectID         string    `json:"project_id"`
	VersionID         string    `json:"version_id"`
	FileSize          int64     `json:"file_size"`
}
