package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"straits/internal/core/errors"
	"straits/internal/engine/compiler"
	"straits/internal/shared/observability"
	"straits/internal/shared/util"

	"github.com/gobwas/glob"
)

// FileResult is the outcome of building one source file.
type FileResult struct {
	Source   string
	Output   string
	Bindings int
	Cached   bool
	Err      error
}

type BuildReport struct {
	BuildID   string
	Units     int
	Failures  int
	CacheHits int
	Duration  time.Duration
	Results   []FileResult
}

// Failed returns the results that carry an error, in path order.
func (r BuildReport) Failed() []FileResult {
	var out []FileResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

type sourceFilter struct {
	include      []glob.Glob
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (a *App) sourceFilter() (sourceFilter, error) {
	cfg := a.config()
	include, err := compileGlobs(cfg.Build.Include, "include")
	if err != nil {
		return sourceFilter{}, err
	}
	dirs, err := compileGlobs(cfg.Build.ExcludeDirs, "exclude dir")
	if err != nil {
		return sourceFilter{}, err
	}
	files, err := compileGlobs(cfg.Build.ExcludeFiles, "exclude file")
	if err != nil {
		return sourceFilter{}, err
	}
	return sourceFilter{include: include, excludeDirs: dirs, excludeFiles: files}, nil
}

func matchAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

// includes reports whether the file at rel (slash separated, relative to the
// source root) takes part in a build.
func (f sourceFilter) includes(rel string) bool {
	rel = util.NormalizePatternPath(rel)
	if matchAny(f.excludeFiles, filepath.Base(rel)) {
		return false
	}
	if len(f.include) > 0 && !matchAny(f.include, rel) {
		return false
	}
	dir := filepath.ToSlash(filepath.Dir(rel))
	for dir != "." && dir != "" {
		if matchAny(f.excludeDirs, filepath.Base(dir)) {
			return false
		}
		dir = filepath.ToSlash(filepath.Dir(dir))
	}
	return true
}

// ScanSources lists the supported files under the source root that pass the
// build filters, sorted. out_dir and state_dir are skipped when nested.
func (a *App) ScanSources() ([]string, error) {
	filter, err := a.sourceFilter()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "build filters")
	}
	root := a.Paths.SourceRoot
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "source root is not a directory"), errors.CtxPath, root)
	}

	p := a.Compiler.Parser()
	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if path == a.Paths.OutDir || path == a.Paths.StateDir || matchAny(filter.excludeDirs, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !p.IsSupportedPath(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if filter.includes(filepath.ToSlash(rel)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "scan source root")
	}
	sort.Strings(files)
	return files, nil
}

// Build compiles every source file into out_dir. Per-file failures are
// reported in the result; the returned error is reserved for failures of the
// build itself.
func (a *App) Build(ctx context.Context) (BuildReport, error) {
	started := time.Now()
	files, err := a.ScanSources()
	if err != nil {
		return BuildReport{}, err
	}

	buildID := ""
	if a.cache != nil {
		if id, err := a.cache.BeginBuild(compiler.Version); err != nil {
			a.log.Warn("failed to record build", "error", err)
		} else {
			buildID = id
		}
	}

	report := a.buildFiles(ctx, buildID, files)
	report.BuildID = buildID
	report.Duration = time.Since(started)
	observability.BuildDuration.Observe(report.Duration.Seconds())

	if a.cache != nil && buildID != "" {
		if err := a.cache.FinishBuild(buildID, report.Units, report.Failures, report.CacheHits); err != nil {
			a.log.Warn("failed to finish build record", "build_id", buildID, "error", err)
		}
	}

	a.log.Info("build finished",
		"units", report.Units,
		"failures", report.Failures,
		"cache_hits", report.CacheHits,
		"duration", report.Duration.Round(time.Millisecond),
		"heap_mb", util.HeapAllocMB(),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// Rebuild compiles the given files, removing outputs whose source is gone.
func (a *App) Rebuild(ctx context.Context, paths []string) BuildReport {
	started := time.Now()
	filter, err := a.sourceFilter()
	if err != nil {
		a.log.Warn("rebuild skipped", "error", err)
		return BuildReport{}
	}

	var present []string
	for _, path := range paths {
		if !a.isSource(path) {
			continue
		}
		rel, err := filepath.Rel(a.Paths.SourceRoot, path)
		if err != nil || !a.Compiler.Parser().IsSupportedPath(path) || !filter.includes(filepath.ToSlash(rel)) {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			a.removeOutput(path)
			continue
		}
		present = append(present, path)
	}
	sort.Strings(present)

	report := a.buildFiles(ctx, "", present)
	report.Duration = time.Since(started)
	observability.BuildDuration.Observe(report.Duration.Seconds())
	return report
}

// isSource excludes paths outside the source root and the tool's own output.
func (a *App) isSource(path string) bool {
	if !util.HasPathPrefix(path, a.Paths.SourceRoot) {
		return false
	}
	for _, own := range []string{a.Paths.OutDir, a.Paths.StateDir} {
		if own != a.Paths.SourceRoot && util.HasPathPrefix(path, own) {
			return false
		}
	}
	return true
}

func (a *App) removeOutput(source string) {
	out, err := a.OutputPath(source)
	if err != nil {
		return
	}
	if err := os.Remove(out); err == nil {
		a.log.Info("removed output", "path", out)
	} else if !os.IsNotExist(err) {
		a.log.Warn("failed to remove output", "path", out, "error", err)
	}
}

func (a *App) buildFiles(ctx context.Context, buildID string, files []string) BuildReport {
	jobs := a.config().Build.Jobs
	if jobs <= 0 {
		jobs = 1
	}
	if jobs > len(files) {
		jobs = len(files)
	}

	results := make([]FileResult, len(files))
	indexes := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				results[idx] = a.buildFile(ctx, buildID, files[idx])
			}
		}()
	}

feed:
	for i := range files {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	report := BuildReport{}
	for i, res := range results {
		if res.Source == "" {
			// never scheduled
			res = FileResult{Source: files[i], Err: ctx.Err()}
		}
		report.Results = append(report.Results, res)
		report.Units++
		switch {
		case res.Err != nil:
			report.Failures++
			a.log.Debug("unit failed", "path", res.Source, "error", res.Err)
		case res.Cached:
			report.CacheHits++
		}
	}
	return report
}

func (a *App) buildFile(ctx context.Context, buildID, source string) FileResult {
	res := FileResult{Source: source}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	out, err := a.OutputPath(source)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = out

	src, err := os.ReadFile(source)
	if err != nil {
		res.Err = errors.AddContext(errors.Wrap(err, errors.CodeInternal, "read source"), errors.CtxPath, source)
		return res
	}

	unit, err := a.CompileSource(ctx, buildID, source, src)
	if err != nil {
		res.Err = err
		return res
	}
	res.Cached = unit.Cached
	res.Bindings = unit.Bindings
	if unit.Cached {
		observability.CacheHitsTotal.Inc()
	} else if a.memo != nil {
		observability.CacheMissesTotal.Inc()
	}

	if err := util.WriteFileWithDirs(out, unit.Code, 0o644); err != nil {
		res.Err = errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write output"), errors.CtxPath, out)
	}
	return res
}
