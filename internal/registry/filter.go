package registry

import (
	"sort"
	"strings"

	"github.com/craftops/modserver/internal/model"
)

// stabilityRank orders version tiers, most stable first
func stabilityRank(versionType string) int {
	switch versionType {
	case model.VersionTypeRelease:
		return 0
	case model.VersionTypeBeta:
		return 1
	case model.VersionTypeAlpha:
		return 2
	default:
		return 3
	}
}

// FilterCompatible selects the versions usable on the target environment
// and orders them best-first. A version is usable when its game-version
// set contains gameVersion and its loader set contains loader. With
// preferStable set, release-tier versions crowd out the rest whenever at
// least one survives the filter. Ordering is (stability rank, then
// publish date descending); equal keys keep input order.
func FilterCompatible(versions []model.Version, gameVersion string, loader model.Loader, preferStable bool) []model.Version {
	compatible := make([]model.Version, 0, len(versions))
	for _, v := range versions {
		if !contains(v.GameVersions, gameVersion) {
			continue
		}
		if !contains(v.Loaders, string(loader)) {
			continue
		}
		compatible = append(compatible, v)
	}

	if len(compatible) == 0 {
		return nil
	}

	if preferStable {
		stable := make([]model.Version, 0, len(compatible))
		for _, v := range compatible {
			if v.VersionType == model.VersionTypeRelease {
				stable = append(stable, v)
			}
		}
		if len(stable) > 0 {
			compatible = stable
		}
	}

	sort.SliceStable(compatible, func(i, j int) bool {
		ri, rj := stabilityRank(compatible[i].VersionType), stabilityRank(compatible[j].VersionType)
		if ri != rj {
			return ri < rj
		}
		return compatible[i].DatePublished.After(compatible[j].DatePublished)
	})

	return compatible
}

// PickFile selects the installable file of a version: the primary-flagged
// file, else the first jar, else the first file present.
func PickFile(version *model.Version) *model.VersionFile {
	if len(version.Files) == 0 {
		return nil
	}

	for i := range version.Files {
		if version.Files[i].Primary {
			return &version.Files[i]
		}
	}
	for i := range version.Files {
		if strings.HasSuffix(version.Files[i].Filename, ".jar") {
			return &version.Files[i]
		}
	}
	return &version.Files[0]
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
