package spectatorpush

import "expvar"

var (
	metricPushEventsTotal       = expvar.NewInt("session_push_events_total")
	metricPushQueuedTotal       = expvar.NewInt("session_push_queued_total")
	metricPushDroppedTotal      = expvar.NewInt("session_push_dropped_total")
	metricPushRetryTotal        = expvar.NewInt("session_push_retry_total")
	metricPushRetryDroppedTotal = expvar.NewInt("session_push_retry_dropped_total")
	metricPushSentTotal         = expvar.NewInt("session_push_sent_total")
	metricPushFailedTotal       = expvar.NewInt("session_push_failed_total")
	metricPushCircuitOpenTotal  = expvar.NewInt("session_push_circuit_open_total")
	metricPushQueueLen          = expvar.NewInt("session_push_queue_len")
	metricPushRetryPending      = expvar.NewInt("session_push_retry_pending")
	metricPushConfigReloadTotal = expvar.NewInt("session_push_config_reload_total")
	metricPushConfigReloadError = expvar.NewInt("session_push_config_reload_error_total")
)
