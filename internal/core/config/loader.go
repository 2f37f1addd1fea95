package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"straits/internal/core/errors"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "config file not found"), errors.CtxPath, path)
		}
		return nil, err
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid config"), errors.CtxPath, path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, errors.AddContext(
			errors.New(errors.CodeValidationError, "unknown config keys: "+strings.Join(keys, ", ")),
			errors.CtxPath, path,
		)
	}

	ApplyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := firstError(Validate(&cfg)); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid config"), errors.CtxPath, path)
	}
	return &cfg, nil
}

// LoadOrDefault loads path, falling back to defaults plus environment
// overrides when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.IsCode(err, errors.CodeNotFound) {
		return nil, err
	}
	cfg = &Config{}
	ApplyEnvOverrides(cfg)
	applyDefaults(cfg)
	if err := firstError(Validate(cfg)); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "invalid config")
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.SourceRoot) == "" {
		cfg.Paths.SourceRoot = "src"
	}
	if strings.TrimSpace(cfg.Paths.OutDir) == "" {
		cfg.Paths.OutDir = "dist"
	}
	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = ".straits"
	}

	if len(cfg.Build.Include) == 0 {
		cfg.Build.Include = []string{"**"}
	}
	if len(cfg.Build.ExcludeDirs) == 0 {
		cfg.Build.ExcludeDirs = []string{"node_modules", ".git"}
	}
	if cfg.Build.Jobs <= 0 {
		cfg.Build.Jobs = runtime.NumCPU()
	}

	if strings.TrimSpace(cfg.Cache.Path) == "" {
		cfg.Cache.Path = "cache.db"
	}
	if cfg.Cache.BusyTimeout <= 0 {
		cfg.Cache.BusyTimeout = 2 * time.Second
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 200 * time.Millisecond
	}
	if cfg.Watch.MaxRebuildsPerSecond <= 0 {
		cfg.Watch.MaxRebuildsPerSecond = 4
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "straits"
	}

	if cfg.Runtime.Timeout == 0 {
		cfg.Runtime.Timeout = 30 * time.Second
	}
}

func firstError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
