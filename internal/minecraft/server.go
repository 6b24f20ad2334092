package minecraft

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/craftops/modserver/internal/config"
	"github.com/craftops/modserver/internal/model"
	"go.uber.org/zap"
)

// Environment is the fixed install target: one game version and one
// loader, probed once at startup.
type Environment struct {
	Version string
	Loader  model.Loader
}

var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Starting minecraft server version (\d+\.\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)Loading Minecraft (\d+\.\d+(?:\.\d+)?)`),
}

// Probe determines the server's game version and mod loader. Explicit
// config values win; otherwise server.properties, then the latest server
// log, then on-disk loader markers are consulted.
func Probe(cfg *config.Config, logger *zap.Logger) (*Environment, error) {
	version := cfg.Minecraft.Version
	if version == "" {
		version = versionFromProperties(cfg.PropertiesPath(), logger)
	}
	if version == "" {
		version = versionFromLogs(filepath.Join(cfg.Minecraft.RootPath, "logs", "latest.log"), logger)
	}
	if version == "" {
		return nil, fmt.Errorf("could not determine minecraft version for %s", cfg.Minecraft.RootPath)
	}

	loader := detectLoader(cfg.Minecraft.RootPath, logger)
	if loader == "" {
		loader = model.Loader(cfg.Minecraft.Loader)
		logger.Info("loader not detected, using configured fallback", zap.String("loader", string(loader)))
	}

	logger.Info("server environment probed",
		zap.String("version", version),
		zap.String("loader", string(loader)),
	)
	return &Environment{Version: version, Loader: loader}, nil
}

// versionFromProperties reads the version key from server.properties
func versionFromProperties(path string, logger *zap.Logger) string {
	f, err := os.Open(path)
	if err != nil {
		logger.Debug("server.properties not readable", zap.String("path", path), zap.Error(err))
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		for _, key := range []string{"version=", "minecraft-version="} {
			if strings.HasPrefix(line, key) {
				if v := strings.TrimSpace(strings.TrimPrefix(line, key)); v != "" {
					logger.Info("version from server.properties", zap.String("version", v))
					return v
				}
			}
		}
	}
	return ""
}

// versionFromLogs scans the tail of the latest server log for a version banner
func versionFromLogs(path string, logger *zap.Logger) string {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug("server log not readable", zap.String("path", path), zap.Error(err))
		return ""
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) > 100 {
		lines = lines[len(lines)-100:]
	}

	for i := len(lines) - 1; i >= 0; i-- {
		for _, pattern := range versionPatterns {
			if m := pattern.FindStringSubmatch(lines[i]); m != nil {
				logger.Info("version from server logs", zap.String("version", m[1]))
				return m[1]
			}
		}
	}
	return ""
}

// detectLoader looks for loader marker files under the server root
func detectLoader(root string, logger *zap.Logger) model.Loader {
	fabricMarkers := []string{
		"fabric-server-mc.*.jar",
		"fabric-server-launch.jar",
		"fabric-loader-*.jar",
		".fabric",
	}
	for _, pattern := range fabricMarkers {
		if matches, _ := filepath.Glob(filepath.Join(root, pattern)); len(matches) > 0 {
			logger.Info("fabric loader detected")
			return model.LoaderFabric
		}
	}

	forgeMarkers := []string{
		"forge-*.jar",
		"libraries/net/minecraftforge",
	}
	for _, pattern := range forgeMarkers {
		if matches, _ := filepath.Glob(filepath.Join(root, pattern)); len(matches) > 0 {
			logger.Info("forge loader detected")
			return model.LoaderForge
		}
	}

	return ""
}
