package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: STRAITS_[SECTION]_[KEY] (e.g., STRAITS_PATHS_OUT_DIR).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.SourceRoot, "STRAITS_PATHS_SOURCE_ROOT")
	setEnvString(&cfg.Paths.OutDir, "STRAITS_PATHS_OUT_DIR")
	setEnvString(&cfg.Paths.StateDir, "STRAITS_PATHS_STATE_DIR")

	// Build
	setEnvList(&cfg.Build.Include, "STRAITS_BUILD_INCLUDE")
	setEnvList(&cfg.Build.ExcludeDirs, "STRAITS_BUILD_EXCLUDE_DIRS")
	setEnvList(&cfg.Build.ExcludeFiles, "STRAITS_BUILD_EXCLUDE_FILES")
	setEnvInt(&cfg.Build.Jobs, "STRAITS_BUILD_JOBS")

	// Cache
	setEnvBoolPtr(&cfg.Cache.Enabled, "STRAITS_CACHE_ENABLED")
	setEnvString(&cfg.Cache.Path, "STRAITS_CACHE_PATH")
	setEnvDuration(&cfg.Cache.BusyTimeout, "STRAITS_CACHE_BUSY_TIMEOUT")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "STRAITS_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.MaxRebuildsPerSecond, "STRAITS_WATCH_MAX_REBUILDS_PER_SECOND")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "STRAITS_OBSERVABILITY_METRICS_ADDR")
	setEnvBool(&cfg.Observability.EnableMetrics, "STRAITS_OBSERVABILITY_ENABLE_METRICS")
	setEnvBool(&cfg.Observability.EnableTracing, "STRAITS_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "STRAITS_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.OTLPInsecure, "STRAITS_OBSERVABILITY_OTLP_INSECURE")
	setEnvString(&cfg.Observability.ServiceName, "STRAITS_OBSERVABILITY_SERVICE_NAME")

	// Runtime
	setEnvDuration(&cfg.Runtime.Timeout, "STRAITS_RUNTIME_TIMEOUT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Printf("Applying env override: %s=%s", key, val)
		*target = val
	}
}

// setEnvList splits a comma separated value.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		var items []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		log.Printf("Applying env override: %s=%s", key, val)
		*target = items
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = &b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = d
		}
	}
}
