package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "straits_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	TransformDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "straits_transform_seconds",
		Help:    "Time spent rewriting a parsed unit.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	UnitsCompiledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "straits_units_compiled_total",
		Help: "Total number of compilation units processed, by outcome.",
	}, []string{"outcome"})

	CompileErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "straits_compile_errors_total",
		Help: "Total number of compile errors, by error code.",
	}, []string{"code"})

	AccessesRewrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "straits_accesses_rewritten_total",
		Help: "Total number of private-member accesses rewritten.",
	}, []string{"kind"})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "straits_cache_hits_total",
		Help: "Total number of units served from the compile cache.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "straits_cache_misses_total",
		Help: "Total number of units that had to be compiled.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "straits_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "straits_build_seconds",
		Help:    "Wall time of a full build.",
		Buckets: prometheus.DefBuckets,
	})

	RuntimeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "straits_runtime_seconds",
		Help:    "Time spent executing compiled output in the embedded runtime.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
)
