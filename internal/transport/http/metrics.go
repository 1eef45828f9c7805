package httptransport

import "expvar"

var (
	metricSessionCreateTotal  = expvar.NewInt("session_create_total")
	metricSessionCreateErrors = expvar.NewInt("session_create_errors_total")

	metricMoveSubmitTotal  = expvar.NewInt("move_submit_total")
	metricMoveSubmitErrors = expvar.NewInt("move_submit_errors_total")

	metricLobbyCommandErrors = expvar.NewInt("lobby_command_errors_total")
)
