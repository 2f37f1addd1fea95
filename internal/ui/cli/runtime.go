package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	coreapp "straits/internal/core/app"
	"straits/internal/core/config"
	"straits/internal/engine/compiler"
	"straits/internal/shared/observability"
	"straits/internal/shared/util"
	sarif "straits/internal/ui/report"
)

func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "straits v%s\n", compiler.Version)
		return 0
	}
	if err := validateCommand(opts); err != nil {
		fmt.Fprintln(stderr, err.Error())
		fmt.Fprint(stderr, usage)
		return 2
	}

	configureLogging(stderr, opts.verbose)

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return 1
	}

	cfg, projectRoot, cfgFile, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	paths, err := config.ResolvePaths(cfg, projectRoot)
	if err != nil {
		slog.Error("failed to resolve runtime paths", "error", err)
		return 1
	}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
			Enabled:     true,
			Endpoint:    cfg.Observability.OTLPEndpoint,
			ServiceName: cfg.Observability.ServiceName,
			Insecure:    cfg.Observability.OTLPInsecure,
		})
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					slog.Warn("tracing shutdown failed", "error", err)
				}
			}()
		}
	}

	application, err := coreapp.New(cfg, paths, coreapp.Options{NoCache: opts.noCache})
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer application.Close()

	if cfg.Observability.EnableMetrics && cfg.Observability.MetricsAddr != "" && opts.command != "compile" {
		server := NewObservabilityServer(cfg.Observability.MetricsAddr, coreapp.NewHealthService(application))
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	switch opts.command {
	case "compile":
		return runCompile(ctx, application, opts, stdout, stderr)
	case "build":
		return runBuild(ctx, application, opts.reportPath, stdout, stderr)
	case "watch":
		if cfgFile != "" {
			cw := config.NewWatcher(cfgFile, application.Reload)
			if err := cw.Start(ctx); err != nil {
				slog.Warn("config hot reload disabled", "error", err)
			} else {
				defer cw.Stop()
			}
		}
		return runWatch(ctx, application, stdout, stderr)
	case "run":
		return runFile(ctx, application, opts.args[0], stdout, stderr)
	}
	return 2
}

func runCompile(ctx context.Context, a *coreapp.App, opts cliOptions, stdout, stderr io.Writer) int {
	unit, err := a.CompileFile(ctx, opts.args[0])
	if err != nil {
		fmt.Fprint(stderr, formatDiagnostic(err))
		return 1
	}
	if opts.outPath != "" {
		if err := util.WriteFileWithDirs(opts.outPath, unit.Code, 0o644); err != nil {
			slog.Error("failed to write output", "path", opts.outPath, "error", err)
			return 1
		}
		return 0
	}
	if _, err := stdout.Write(unit.Code); err != nil {
		return 1
	}
	return 0
}

func runBuild(ctx context.Context, a *coreapp.App, reportPath string, stdout, stderr io.Writer) int {
	report, err := a.Build(ctx)
	if err != nil {
		fmt.Fprint(stderr, formatDiagnostic(err))
		return 1
	}
	printReport(report, stdout, stderr)
	if reportPath != "" {
		data, err := sarif.GenerateSARIF(a.Paths.ProjectRoot, compiler.Version, report.Results)
		if err == nil {
			err = util.WriteFileWithDirs(reportPath, data, 0o644)
		}
		if err != nil {
			slog.Error("failed to write report", "path", reportPath, "error", err)
			return 1
		}
	}
	if report.Failures > 0 {
		return 1
	}
	return 0
}

func runWatch(ctx context.Context, a *coreapp.App, stdout, stderr io.Writer) int {
	err := a.Watch(ctx, func(report coreapp.BuildReport) {
		printReport(report, stdout, stderr)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprint(stderr, formatDiagnostic(err))
		return 1
	}
	return 0
}

func runFile(ctx context.Context, a *coreapp.App, path string, stdout, stderr io.Writer) int {
	value, err := a.Run(ctx, path)
	if err != nil {
		fmt.Fprint(stderr, formatDiagnostic(err))
		return 1
	}
	fmt.Fprintln(stdout, value)
	return 0
}

func printReport(report coreapp.BuildReport, stdout, stderr io.Writer) {
	for _, res := range report.Failed() {
		fmt.Fprint(stderr, formatDiagnostic(res.Err))
	}
	fmt.Fprintln(stdout, formatSummary(report))
}

// loadConfig returns the configuration, the project root relative paths
// resolve against, and the config file ("" when running on defaults).
func loadConfig(path, cwd string) (*config.Config, string, string, error) {
	if strings.TrimSpace(path) == "" {
		found, err := config.FindConfig(cwd)
		if err != nil {
			return nil, "", "", err
		}
		if found == "" {
			slog.Debug("no config file found, using defaults", "cwd", cwd)
			cfg, err := config.LoadOrDefault(filepath.Join(cwd, config.DefaultFile))
			return cfg, cwd, "", err
		}
		path = found
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", "", err
	}
	slog.Debug("loaded config", "path", path)
	return cfg, filepath.Dir(path), path, nil
}

func configureLogging(output io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
