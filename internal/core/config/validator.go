package config

import (
	"fmt"
	"net"
	"strings"

	"straits/internal/engine/parser"

	"github.com/gobwas/glob"
)

// Validate returns every problem found in cfg, in section order.
func Validate(cfg *Config) []error {
	var errs []error
	for _, check := range []func(*Config) error{
		validateVersion,
		validatePaths,
		validateBuild,
		validateLanguages,
		validateCache,
		validateWatch,
		validateObservability,
		validateRuntime,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validatePaths(cfg *Config) error {
	if strings.TrimSpace(cfg.Paths.SourceRoot) == "" {
		return fmt.Errorf("paths.source_root must not be empty")
	}
	if strings.TrimSpace(cfg.Paths.OutDir) == "" {
		return fmt.Errorf("paths.out_dir must not be empty")
	}
	source := ResolveRelative(".", cfg.Paths.SourceRoot)
	out := ResolveRelative(".", cfg.Paths.OutDir)
	if source == out {
		return fmt.Errorf("paths.out_dir must differ from paths.source_root (%q)", cfg.Paths.SourceRoot)
	}
	return nil
}

func validateBuild(cfg *Config) error {
	if cfg.Build.Jobs < 0 {
		return fmt.Errorf("build.jobs must be >= 0, got %d", cfg.Build.Jobs)
	}
	for i, pattern := range cfg.Build.Include {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("build.include[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	for i, pattern := range cfg.Build.ExcludeFiles {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("build.exclude_files[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	for i, dir := range cfg.Build.ExcludeDirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("build.exclude_dirs[%d] must not be empty", i)
		}
	}
	return nil
}

func validateLanguages(cfg *Config) error {
	for language, settings := range cfg.Languages {
		if strings.TrimSpace(language) == "" {
			return fmt.Errorf("languages key must not be empty")
		}
		for _, ext := range settings.Extensions {
			if strings.TrimSpace(ext) == "" {
				return fmt.Errorf("languages.%s.extensions must not include empty values", language)
			}
		}
	}
	if _, err := parser.BuildLanguageRegistry(cfg.LanguageOverrides()); err != nil {
		return err
	}
	return nil
}

func validateCache(cfg *Config) error {
	if cfg.Cache.IsEnabled() && strings.TrimSpace(cfg.Cache.Path) == "" {
		return fmt.Errorf("cache.path must not be empty when the cache is enabled")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.MaxRebuildsPerSecond < 0 {
		return fmt.Errorf("watch.max_rebuilds_per_second must not be negative")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	obs := cfg.Observability
	if addr := strings.TrimSpace(obs.MetricsAddr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("observability.metrics_addr %q must be host:port: %w", addr, err)
		}
	} else if obs.EnableMetrics {
		return fmt.Errorf("observability.metrics_addr must be set when observability.enable_metrics=true")
	}
	if obs.EnableTracing && strings.TrimSpace(obs.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint must be set when observability.enable_tracing=true")
	}
	return nil
}

func validateRuntime(cfg *Config) error {
	if cfg.Runtime.Timeout < 0 {
		return fmt.Errorf("runtime.timeout must not be negative")
	}
	return nil
}

// LanguageOverrides converts the [languages] tables for the grammar registry.
func (c *Config) LanguageOverrides() map[string]parser.LanguageOverride {
	if len(c.Languages) == 0 {
		return nil
	}
	overrides := make(map[string]parser.LanguageOverride, len(c.Languages))
	for id, lang := range c.Languages {
		overrides[strings.ToLower(strings.TrimSpace(id))] = parser.LanguageOverride{
			Enabled:    lang.Enabled,
			Extensions: append([]string(nil), lang.Extensions...),
		}
	}
	return overrides
}
