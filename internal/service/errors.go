package service

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when the manager is used before the
// server environment was probed.
var ErrNotInitialized = errors.New("mod manager not initialized")

// NoCompatibleVersionError means no installable version chain exists
// for a mod on the target environment.
type NoCompatibleVersionError struct {
	Slug        string
	GameVersion string
}

func (e *NoCompatibleVersionError) Error() string {
	return fmt.Sprintf("no compatible version for %q with minecraft %s", e.Slug, e.GameVersion)
}

// DownloadError aborts an install call; mods installed earlier in the
// same call stay installed.
type DownloadError struct {
	Filename string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download file %q", e.Filename)
}

// IsNoCompatibleVersion reports whether err is a NoCompatibleVersionError
func IsNoCompatibleVersion(err error) bool {
	var e *NoCompatibleVersionError
	return errors.As(err, &e)
}
