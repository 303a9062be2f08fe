package metrics

import "github.com/knsan189/imageLabeler/internal/filesystem"

// Label values shared with the packages that record them.
var (
	// ItemOutcomes are the values of LabelerItemsTotal's outcome label.
	ItemOutcomes = []string{
		"labeled", "already_marked", "unresolved", "not_found", "vanished",
		"no_metadata", "no_labels", "error",
	}

	// IndexOperations are the values of the photo index operation label.
	IndexOperations = []string{
		"list_uncaptioned", "find_by_file_name", "labels", "add_label", "update_caption", "ping",
	}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// volumes are the filesystem volume labels in use.
func InitializeMetrics(volumes []string) {
	volumes = append(append([]string(nil), volumes...), filesystem.UnknownVolume)

	for _, vol := range volumes {
		for _, op := range filesystem.Operations {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			if op == "stable" {
				continue
			}
			for _, ev := range filesystem.RetryEvents {
				FilesystemRetryEvents.WithLabelValues(op, vol, string(ev))
			}
		}
	}

	for _, outcome := range ItemOutcomes {
		LabelerItemsTotal.WithLabelValues(outcome)
		LedgerOutcomes.WithLabelValues(outcome)
	}

	for _, op := range IndexOperations {
		IndexRequestDuration.WithLabelValues(op)
		for _, status := range []string{"success", "error"} {
			IndexRequestsTotal.WithLabelValues(op, status)
		}
	}

	for _, status := range []string{"success", "error"} {
		ReconcileCyclesTotal.WithLabelValues(status)
		LabelsWrittenTotal.WithLabelValues(status)
	}
	for _, result := range []string{"enqueued", "in_flight", "unsupported", "terminal"} {
		ReconcileCandidatesTotal.WithLabelValues(result)
	}
	for _, result := range []string{"found", "empty", "error"} {
		ExtractionsTotal.WithLabelValues(result)
	}
	for _, dialect := range []string{"standard", "loose", "structured", "freeform", "combined"} {
		DialectsTotal.WithLabelValues(dialect)
	}
	for _, state := range []string{"active", "queued"} {
		PoolTasks.WithLabelValues(state)
	}

	for _, op := range []string{"initialize_schema", "get_entry", "record_outcome", "is_terminal",
		"count_outcomes", "recent_entries", "mark_seen", "is_seen", "prune", "forget", "load_checkpoint", "save_checkpoint"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
