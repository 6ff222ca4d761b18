package observability

// Metric name prefixes
const (
	MetricPrefix = "surveydraw"
)

// Metric names
const (
	// Ingestion metrics
	ResponsesSubmittedTotal = MetricPrefix + ".responses.submitted_total"
	DuplicatesRejectedTotal = MetricPrefix + ".responses.duplicates_rejected_total"

	// Draw metrics
	DrawsCompletedTotal = MetricPrefix + ".draws.completed_total"
	DrawCandidates      = MetricPrefix + ".draws.candidates"

	// Notification metrics
	NotificationsRecordedTotal = MetricPrefix + ".notifications.recorded_total"
)

// Label keys
const (
	LabelLottery = "lottery"
	LabelStatus  = "status"
)
