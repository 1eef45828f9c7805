package spectatorgateway

import "expvar"

var (
	metricSessionSSEConnectionsTotal  = expvar.NewInt("session_sse_connections_total")
	metricSessionSSEConnectionsActive = expvar.NewInt("session_sse_connections_active")
)
