// Package metrics provides Prometheus instrumentation for the image labeler.
//
// All metrics are registered on the default registry with promauto and are
// prefixed with "image_labeler_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
// Requests served by the ops server:
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Ledger Metrics
//
// The sqlite outcome ledger:
//   - DBQueryTotal, DBQueryDuration, DBConnectionsOpen
//   - LedgerOutcomes: entries by their last recorded outcome
//
// ## Reconciliation Metrics
//
//   - ReconcileCyclesTotal: cycles by status
//   - ReconcileLastCycleTimestamp, ReconcileLastCycleDuration
//   - ReconcileCandidatesTotal: candidates by what the loop did with them
//   - InFlightItems: size of the in-flight set
//
// ## Labeling Metrics
//
//   - LabelerItemsTotal: processed candidates by outcome
//   - LabelerItemDuration
//   - LabelsWrittenTotal, ExtractionsTotal, DialectsTotal
//   - PoolTasks: worker pool tasks by state
//
// ## Photo Index Metrics
//
//   - IndexRequestsTotal, IndexRequestDuration by operation
//
// ## Watcher and Filesystem Metrics
//
//   - WatcherEventsTotal, WatcherErrors, WatchedDirectories
//   - FilesystemOperation* by volume and operation, FilesystemRetryEvents
//     by ESTALE loop event; fed by [NewFilesystemObserver]
//
// # Sampler
//
// Gauges that are cheaper to read than to track on every change are copied
// from a [StatsProvider] by a [Sampler]:
//
//	g.Go(func() error { return metrics.NewSampler(app, 15*time.Second).Run(ctx) })
//
// # Prometheus Queries
//
// Labeling success rate:
//
//	sum(rate(image_labeler_items_total{outcome="labeled"}[1h])) /
//	sum(rate(image_labeler_items_total[1h]))
//
// Photo index p95 latency by operation:
//
//	histogram_quantile(0.95, sum(rate(image_labeler_index_request_duration_seconds_bucket[5m])) by (le, operation))
package metrics
