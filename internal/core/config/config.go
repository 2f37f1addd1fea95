package config

import (
	"time"
)

const DefaultFile = "straits.toml"

type Config struct {
	Version       int                 `toml:"version"`
	Paths         Paths               `toml:"paths"`
	Build         Build               `toml:"build"`
	Languages     map[string]Language `toml:"languages"`
	Cache         Cache               `toml:"cache"`
	Watch         Watch               `toml:"watch"`
	Observability Observability       `toml:"observability"`
	Runtime       Runtime             `toml:"runtime"`
}

type Paths struct {
	SourceRoot string `toml:"source_root"`
	OutDir     string `toml:"out_dir"`
	StateDir   string `toml:"state_dir"`
}

type Build struct {
	Include      []string `toml:"include"`
	ExcludeDirs  []string `toml:"exclude_dirs"`
	ExcludeFiles []string `toml:"exclude_files"`
	Jobs         int      `toml:"jobs"`
}

type Language struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
}

type Cache struct {
	Enabled     *bool         `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

func (c Cache) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

type Watch struct {
	Debounce             time.Duration `toml:"debounce"`
	MaxRebuildsPerSecond float64       `toml:"max_rebuilds_per_second"`
}

type Observability struct {
	MetricsAddr   string `toml:"metrics_addr"`
	EnableMetrics bool   `toml:"enable_metrics"`
	EnableTracing bool   `toml:"enable_tracing"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	OTLPInsecure  bool   `toml:"otlp_insecure"`
	ServiceName   string `toml:"service_name"`
}

type Runtime struct {
	Timeout time.Duration `toml:"timeout"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
