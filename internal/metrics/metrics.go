package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics (ops server)
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_labeler_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_labeler_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Ledger database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_db_queries_total",
			Help: "Total number of ledger database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_labeler_db_query_duration_seconds",
			Help:    "Ledger database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_labeler_db_connections_open",
			Help: "Number of open ledger database connections",
		},
	)

	LedgerOutcomes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "image_labeler_ledger_outcomes",
			Help: "Number of ledger entries by last outcome",
		},
		[]string{"outcome"},
	)
)

// Reconciliation loop metrics
var (
	ReconcileCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_reconcile_cycles_total",
			Help: "Total number of reconciliation cycles",
		},
		[]string{"status"}, // "success", "error"
	)

	ReconcileLastCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_labeler_reconcile_last_cycle_timestamp",
			Help: "Unix timestamp of the last completed reconciliation cycle",
		},
	)

	ReconcileLastCycleDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_labeler_reconcile_last_cycle_duration_seconds",
			Help: "Duration of the last reconciliation cycle in seconds",
		},
	)

	ReconcileCandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_reconcile_candidates_total",
			Help: "Candidates returned by the photo index, by what the loop did with them",
		},
		[]string{"result"}, // "enqueued", "in_flight", "unsupported", "terminal"
	)

	InFlightItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_labeler_in_flight_items",
			Help: "Number of candidates currently in flight",
		},
	)
)

// Labeling metrics
var (
	LabelerItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_items_total",
			Help: "Processed candidates by outcome",
		},
		[]string{"outcome"},
	)

	LabelerItemDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_labeler_item_duration_seconds",
			Help:    "Time spent processing one candidate",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	LabelsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_labels_written_total",
			Help: "Label writes to the photo index",
		},
		[]string{"status"}, // "success", "error"
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_extractions_total",
			Help: "Metadata extraction attempts by result",
		},
		[]string{"result"}, // "found", "empty", "error"
	)

	DialectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_dialects_total",
			Help: "Parsed metadata records by dialect",
		},
		[]string{"dialect"},
	)

	PoolTasks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "image_labeler_pool_tasks",
			Help: "Worker pool tasks by state",
		},
		[]string{"state"}, // "active", "queued"
	)
)

// Photo index client metrics
var (
	IndexRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_index_requests_total",
			Help: "Requests sent to the photo index",
		},
		[]string{"operation", "status"},
	)

	IndexRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_labeler_index_request_duration_seconds",
			Help:    "Photo index request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_labeler_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_labeler_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_labeler_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_labeler_filesystem_retry_events_total",
			Help: "ESTALE retry loop events by operation, volume and event",
		},
		[]string{"operation", "volume", "event"},
	)
)

// Runtime metrics
var (
	GoMemoryLimitBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_labeler_go_memory_limit_bytes",
			Help: "Soft memory limit applied to the Go runtime",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "image_labeler_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// Status maps an error to the "success"/"error" status label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveOperation records an operation's duration and result on a
// counter/histogram pair labeled by operation (and status on the counter).
func ObserveOperation(total *prometheus.CounterVec, duration *prometheus.HistogramVec, operation string, seconds float64, err error) {
	total.WithLabelValues(operation, Status(err)).Inc()
	duration.WithLabelValues(operation).Observe(seconds)
}
