package fanout

import "expvar"

var (
	metricPublishedTotal      = expvar.NewInt("fanout_published_total")
	metricDeliveredTotal      = expvar.NewInt("fanout_delivered_total")
	metricDroppedTotal        = expvar.NewInt("fanout_dropped_total")
	metricFilterErrorTotal    = expvar.NewInt("fanout_filter_error_total")
	metricTransformErrorTotal = expvar.NewInt("fanout_transform_error_total")
	metricPanicTotal          = expvar.NewInt("fanout_panic_total")
	metricPushErrorTotal      = expvar.NewInt("fanout_push_error_total")
	metricSubscriptions       = expvar.NewInt("fanout_subscriptions")
)
