package metrics

import "expvar"

var (
	PollRuns   = expvar.NewInt("monitor_poll_runs")
	PollErrors = expvar.NewInt("monitor_poll_errors")

	EventsPlaced    = expvar.NewInt("monitor_events_placed")
	EventsModified  = expvar.NewInt("monitor_events_modified")
	EventsCancelled = expvar.NewInt("monitor_events_cancelled")
	HandlerErrors   = expvar.NewInt("monitor_handler_errors")

	SnapshotSaves = expvar.NewInt("snapshot_saves")
	SnapshotLoads = expvar.NewInt("snapshot_loads")

	Replications     = expvar.NewInt("replications")
	AccountSuccesses = expvar.NewInt("replication_account_successes")
	AccountFailures  = expvar.NewInt("replication_account_failures")
	SignalsRejected  = expvar.NewInt("signals_rejected")
)
