package app

import (
	"context"

	"straits/internal/core/config"
	"straits/internal/core/watcher"
	"straits/internal/shared/util"
)

// Watch runs a full build, then rebuilds changed sources until ctx is done.
// onBuild receives every report, the initial one included. A Reload while
// watching re-paces the watcher and triggers a full build.
func (a *App) Watch(ctx context.Context, onBuild func(BuildReport)) error {
	if onBuild == nil {
		onBuild = func(BuildReport) {}
	}

	report, err := a.Build(ctx)
	if err != nil {
		return err
	}
	onBuild(report)

	cfg := a.config()
	w, err := watcher.NewWatcher(
		cfg.Watch.Debounce,
		cfg.Build.ExcludeDirs,
		cfg.Build.ExcludeFiles,
		func(paths []string) {
			a.log.Debug("sources changed", "count", len(paths))
			rebuilt := a.Rebuild(ctx, paths)
			if rebuilt.Units > 0 {
				onBuild(rebuilt)
			}
		},
	)
	if err != nil {
		return err
	}
	defer w.Close()

	w.SetLogger(a.log)
	w.SetExtensions(a.Compiler.Parser().SupportedExtensions())
	w.SetLimiter(util.NewLimiter(cfg.Watch.MaxRebuildsPerSecond, 1))
	if err := w.Watch([]string{a.Paths.SourceRoot}); err != nil {
		return err
	}

	a.mu.Lock()
	a.onReload = func(next *config.Config) {
		w.SetDebounce(next.Watch.Debounce)
		w.SetLimiter(util.NewLimiter(next.Watch.MaxRebuildsPerSecond, 1))
		report, err := a.Build(ctx)
		if err != nil {
			a.log.Warn("rebuild after reload failed", "error", err)
			return
		}
		onBuild(report)
	}
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.onReload = nil
		a.mu.Unlock()
	}()

	a.log.Info("watching for changes", "root", a.Paths.SourceRoot)
	<-ctx.Done()
	return nil
}
