// Package app wires configuration, the compiler, the output cache and the
// host runtime into the operations the CLI exposes.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"straits/internal/core/config"
	"straits/internal/core/errors"
	"straits/internal/data/cache"
	"straits/internal/engine/compiler"
	"straits/internal/engine/parser"
)

type Options struct {
	// NoCache bypasses the compile cache for this process.
	NoCache bool
	Logger  *slog.Logger
}

type App struct {
	Config   *config.Config
	Paths    config.ResolvedPaths
	Compiler *compiler.Compiler

	cache *cache.Store
	memo  *cache.Memory
	log   *slog.Logger

	mu       sync.RWMutex
	onReload func(*config.Config)
}

const memoBytes = 32 << 20

func New(cfg *config.Config, paths config.ResolvedPaths, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	registry, err := parser.BuildLanguageRegistry(cfg.LanguageOverrides())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "invalid language registry")
	}
	loader, err := parser.NewGrammarLoaderWithRegistry(registry)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "load grammars")
	}

	a := &App{
		Config:   cfg,
		Paths:    paths,
		Compiler: compiler.New(parser.NewParser(loader), log),
		log:      log,
	}

	if !opts.NoCache {
		a.memo = cache.NewMemory(memoBytes)
	}
	if cfg.Cache.IsEnabled() && !opts.NoCache {
		store, err := openCache(paths.CachePath, cfg.Cache.BusyTimeout, log)
		if err != nil {
			// A broken cache only costs speed.
			log.Warn("compile cache unavailable", "path", paths.CachePath, "error", err)
		} else {
			a.cache = store
		}
	}
	return a, nil
}

func openCache(path string, busyTimeout time.Duration, log *slog.Logger) (*cache.Store, error) {
	store, err := cache.Open(path, busyTimeout)
	if err == nil || !cache.IsCorruptError(err) {
		return store, err
	}
	log.Warn("discarding corrupt compile cache", "path", path, "error", err)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return cache.Open(path, busyTimeout)
}

func (a *App) config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Config
}

// Reload swaps in a new configuration. Build and watch settings apply
// immediately. Everything the compiler or cache was opened with needs a
// restart.
func (a *App) Reload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.mu.Lock()
	prev := a.Config
	a.Config = cfg
	hook := a.onReload
	a.mu.Unlock()

	if !reflect.DeepEqual(prev.Languages, cfg.Languages) || prev.Paths != cfg.Paths || !reflect.DeepEqual(prev.Cache, cfg.Cache) {
		a.log.Warn("some config changes apply after restart only")
	}
	if hook != nil {
		hook(cfg)
	}
}

// Cache returns the compile cache, or nil when caching is off.
func (a *App) Cache() *cache.Store {
	return a.cache
}

func (a *App) Close() error {
	if a == nil || a.cache == nil {
		return nil
	}
	err := a.cache.Close()
	a.cache = nil
	return err
}

// Unit is one compiled source file.
type Unit struct {
	Path     string
	Language string
	Code     []byte
	Bindings int
	Cached   bool
}

// CompileSource compiles src as if read from path, consulting the cache.
func (a *App) CompileSource(ctx context.Context, buildID, path string, src []byte) (*Unit, error) {
	lang := a.Compiler.Parser().GetLanguage(path)
	if lang == "" {
		return nil, errors.AddContext(
			errors.New(errors.CodeNotSupported, "unsupported file type"),
			errors.CtxPath, path,
		)
	}

	key := cache.Key(lang, src, compiler.Version)
	if a.memo != nil {
		if entry, ok := a.memo.Get(key); ok {
			if a.cache != nil && buildID != "" {
				a.touch(entry, path, buildID)
			}
			return &Unit{Path: path, Language: lang, Code: entry.Code, Bindings: entry.Bindings, Cached: true}, nil
		}
	}
	if a.cache != nil {
		entry, ok, err := a.cache.Get(key)
		switch {
		case err != nil:
			a.log.Warn("cache lookup failed", "path", path, "error", err)
		case ok:
			a.touch(entry, path, buildID)
			if a.memo != nil {
				a.memo.Put(entry)
			}
			return &Unit{Path: path, Language: lang, Code: entry.Code, Bindings: entry.Bindings, Cached: true}, nil
		}
	}

	res, err := a.Compiler.CompileLanguage(ctx, lang, path, src)
	if err != nil {
		return nil, err
	}

	entry := cache.Entry{
		Key:      key,
		Path:     path,
		Language: lang,
		Version:  compiler.Version,
		Code:     res.Code,
		Bindings: res.Stats.Bindings,
		BuildID:  buildID,
	}
	if a.memo != nil {
		a.memo.Put(entry)
	}
	if a.cache != nil {
		if err := a.cache.Put(entry); err != nil {
			a.log.Warn("cache store failed", "path", path, "error", err)
		}
	}
	return &Unit{Path: path, Language: lang, Code: res.Code, Bindings: res.Stats.Bindings}, nil
}

func (a *App) touch(entry cache.Entry, path, buildID string) {
	entry.Path = path
	entry.BuildID = buildID
	entry.UpdatedAt = time.Time{}
	if err := a.cache.Put(entry); err != nil {
		a.log.Debug("cache refresh failed", "path", path, "error", err)
	}
}

// CompileFile reads and compiles one file.
func (a *App) CompileFile(ctx context.Context, path string) (*Unit, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "source file not found"), errors.CtxPath, path)
		}
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "read source"), errors.CtxPath, path)
	}
	return a.CompileSource(ctx, "", path, src)
}

// OutputPath maps a file under the source root to its place under out_dir.
func (a *App) OutputPath(source string) (string, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(a.Paths.SourceRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.AddContext(
			errors.New(errors.CodeValidationError, fmt.Sprintf("%s is outside the source root", source)),
			errors.CtxPath, source,
		)
	}
	return filepath.Join(a.Paths.OutDir, rel), nil
}
