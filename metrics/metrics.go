package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IndexBuildsTotal counts journalindex.Build calls by outcome: "complete"
// for a full scan, "partial" for one that stopped early on a time budget.
var IndexBuildsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "journal_index_builds_total",
		Help: "Per-file index builds by outcome",
	},
	[]string{"outcome"},
)

// IndexCacheLookupsTotal counts journalindex.Cache.Get results by hit/miss.
var IndexCacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "journal_index_cache_lookups_total",
		Help: "Index cache lookups by result",
	},
	[]string{"result"},
)

// IndexBuildLatencyHistogram measures wall-clock time spent building a
// single file's index.
var IndexBuildLatencyHistogram = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "journal_index_build_latency_seconds",
		Help:    "Per-file index build latency",
		Buckets: prometheus.ExponentialBuckets(0.0001, 10, 8),
	},
	[]string{"schema_version"},
)

// QueryLatencyHistogram measures how long a filtered cursor walk takes from
// NewCursor through exhaustion, per query kind.
var QueryLatencyHistogram = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "journal_query_latency_seconds",
		Help:    "Query latency by location kind",
		Buckets: prometheus.ExponentialBuckets(0.000001, 10, 10),
	},
	[]string{"location_kind"},
)

// RotationsTotal counts journallog rotations, keyed by the trigger that
// caused them (size, duration, entries).
var RotationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "journal_log_rotations_total",
		Help: "Journal file rotations by trigger",
	},
	[]string{"trigger"},
)

// RetentionDeletionsTotal counts files removed by retention enforcement,
// keyed by the policy that triggered the deletion.
var RetentionDeletionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "journal_log_retention_deletions_total",
		Help: "Files deleted by retention policy",
	},
	[]string{"policy"},
)

// RegistryEventsTotal counts directory-watch events delivered by registry,
// keyed by kind (insert/remove/replace).
var RegistryEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "journal_registry_events_total",
		Help: "Directory registry events by kind",
	},
	[]string{"kind"},
)

// SigbusFiredTotal counts recovered memory faults observed by sigbus.Protect.
var SigbusFiredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "journal_sigbus_fired_total",
		Help: "Recovered memory faults during protected mmap reads",
	},
	[]string{"op"},
)

// Version reports build information of this binary as a single gauge with a
// fixed label set, set to 1 once at startup.
var Version = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "version",
		Help: "Version information of this binary",
	},
	[]string{"started_at", "tag", "commit", "compiler", "goarch", "goos", "goamd64", "vcs", "vcs_revision", "vcs_time", "vcs_modified"},
)
