package orchestrator

import "expvar"

var (
	metricSessionsCreated   = expvar.NewInt("orchestrator_sessions_created_total")
	metricSessionsStarted   = expvar.NewInt("orchestrator_sessions_started_total")
	metricSessionsFinished  = expvar.NewInt("orchestrator_sessions_finished_total")
	metricSessionsAborted   = expvar.NewInt("orchestrator_sessions_aborted_total")
	metricSessionsDissolved = expvar.NewInt("orchestrator_sessions_dissolved_total")
	metricMovesApplied      = expvar.NewInt("orchestrator_moves_applied_total")
	metricMovesRejected     = expvar.NewInt("orchestrator_moves_rejected_total")
	metricBotMoves          = expvar.NewInt("orchestrator_bot_moves_total")
	metricBotMoveFailures   = expvar.NewInt("orchestrator_bot_move_failures_total")
)
