package registry_test

import (
	"testing"
	"time"

	"github.com/craftops/modserver/internal/model"
	"github.com/craftops/modserver/internal/registry"
	"github.com/stretchr/testify/require"
)

func mkVersion(number, versionType string, gameVersions, loaders []string, published time.Time) model.Version {
	return model.Version{
		ID:            "v-" + number,
		VersionNumber: number,
		VersionType:   versionType,
		GameVersions:  gameVersions,
		Loaders:       loaders,
		DatePublished: published,
	}
}

func TestFilterCompatibleMatchesTarget(t *testing.T) {
	now := time.Now()
	versions := []model.Version{
		mkVersion("1.0.0", model.VersionTypeRelease, []string{"1.20.1"}, []string{"fabric"}, now),
		mkVersion("1.1.0", model.VersionTypeRelease, []string{"1.19.4"}, []string{"fabric"}, now),
		mkVersion("1.2.0", model.VersionTypeRelease, []string{"1.20.1"}, []string{"forge"}, now),
		mkVersion("1.3.0", model.VersionTypeRelease, []string{"1.20.1", "1.19.4"}, []string{"fabric", "forge"}, now),
	}

	got := registry.FilterCompatible(versions, "1.20.1", model.LoaderFabric, true)
	require.Len(t, got, 2)
	for _, v := range got {
		require.Contains(t, v.GameVersions, "1.20.1")
		require.Contains(t, v.Loaders, "fabric")
	}
}

func TestFilterCompatibleEmptyWhenNothingMatches(t *testing.T) {
	versions := []model.Version{
		mkVersion("1.0.0", model.VersionTypeRelease, []string{"1.18.2"}, []string{"fabric"}, time.Now()),
	}
	got := registry.FilterCompatible(versions, "1.20.1", model.LoaderFabric, true)
	require.Empty(t, got)
}

func TestFilterCompatiblePreferStableHidesPrereleases(t *testing.T) {
	now := time.Now()
	versions := []model.Version{
		mkVersion("2.0.0-beta", model.VersionTypeBeta, []string{"1.20.1"}, []string{"fabric"}, now.Add(2*time.Hour)),
		mkVersion("2.0.0-alpha", model.VersionTypeAlpha, []string{"1.20.1"}, []string{"fabric"}, now.Add(time.Hour)),
		mkVersion("1.9.0", model.VersionTypeRelease, []string{"1.20.1"}, []string{"fabric"}, now),
	}

	got := registry.FilterCompatible(versions, "1.20.1", model.LoaderFabric, true)
	require.Len(t, got, 1)
	require.Equal(t, "1.9.0", got[0].VersionNumber)
}

func TestFilterCompatibleNewestReleaseFirst(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	versions := []model.Version{
		mkVersion("1.0.0", model.VersionTypeRelease, []string{"1.20.1"}, []string{"fabric"}, t1),
		mkVersion("1.1.0", model.VersionTypeRelease, []string{"1.20.1"}, []string{"fabric"}, t2),
	}

	got := registry.FilterCompatible(versions, "1.20.1", model.LoaderFabric, true)
	require.Len(t, got, 2)
	require.Equal(t, "1.1.0", got[0].VersionNumber)
	require.Equal(t, "1.0.0", got[1].VersionNumber)
}

func TestFilterCompatibleStabilityOrderWithoutStablePreference(t *testing.T) {
	now := time.Now()
	versions := []model.Version{
		mkVersion("3.0.0-alpha", model.VersionTypeAlpha, []string{"1.20.1"}, []string{"fabric"}, now.Add(3*time.Hour)),
		mkVersion("2.0.0-beta", model.VersionTypeBeta, []string{"1.20.1"}, []string{"fabric"}, now.Add(2*time.Hour)),
		mkVersion("1.0.0", model.VersionTypeRelease, []string{"1.20.1"}, []string{"fabric"}, now),
	}

	got := registry.FilterCompatible(versions, "1.20.1", model.LoaderFabric, false)
	require.Len(t, got, 3)
	require.Equal(t, "1.0.0", got[0].VersionNumber)
	require.Equal(t, "2.0.0-beta", got[1].VersionNumber)
	require.Equal(t, "3.0.0-alpha", got[2].VersionNumber)
}

func TestFilterCompatibleStableTieBreakKeepsInputOrder(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	versions := []model.Version{
		mkVersion("first", model.VersionTypeRelease, []string{"1.20.1"}, []string{"fabric"}, ts),
		mkVersion("second", model.VersionTypeRelease, []string{"1.20.1"}, []string{"fabric"}, ts),
	}

	got := registry.FilterCompatible(versions, "1.20.1", model.LoaderFabric, true)
	require.Len(t, got, 2)
	require.Equal(t, "first", got[0].VersionNumber)
	require.Equal(t, "second", got[1].VersionNumber)
}

func TestPickFilePrimary(t *testing.T) {
	v := model.Version{Files: []model.VersionFile{
		{Filename: "extra.zip"},
		{Filename: "mod.jar", Primary: true},
	}}
	f := registry.PickFile(&v)
	require.NotNil(t, f)
	require.Equal(t, "mod.jar", f.Filename)
}

func TestPickFileFallsBackToJarThenFirst(t *testing.T) {
	v := model.Version{Files: []model.VersionFile{
		{Filename: "sources.zip"},
		{Filename: "mod.jar"},
	}}
	f := registry.PickFile(&v)
	require.NotNil(t, f)
	require.Equal(t, "mod.jar", f.Filename)

	v = model.Version{Files: []model.VersionFile{
		{Filename: "a.zip"},
		{Filename: "b.zip"},
	}}
	f = registry.PickFile(&v)
	require.NotNil(t, f)
	require.Equal(t, "a.zip", f.Filename)

	v = model.Version{}
	require.Nil(t, registry.PickFile(&v))
}
