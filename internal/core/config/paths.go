package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	ProjectRoot string
	SourceRoot  string
	OutDir      string
	StateDir    string
	CachePath   string
}

// ResolvePaths makes every configured path absolute. Relative paths are taken
// from the project root, which is the directory holding the config file.
func ResolvePaths(cfg *Config, projectRoot string) (ResolvedPaths, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return ResolvedPaths{}, fmt.Errorf("project root must not be empty")
	}
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return ResolvedPaths{}, err
	}

	stateDir := ResolveRelative(root, cfg.Paths.StateDir)
	return ResolvedPaths{
		ProjectRoot: filepath.Clean(root),
		SourceRoot:  ResolveRelative(root, cfg.Paths.SourceRoot),
		OutDir:      ResolveRelative(root, cfg.Paths.OutDir),
		StateDir:    stateDir,
		CachePath:   ResolveRelative(stateDir, cfg.Cache.Path),
	}, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// FindConfig walks up from start looking for straits.toml. It returns "" when
// none exists.
func FindConfig(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	dir := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	for {
		candidate := filepath.Join(dir, DefaultFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
