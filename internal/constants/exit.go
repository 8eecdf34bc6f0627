package constants

// Process exit codes of `nexcron run`. Timers and monitoring key off these.
const (
	// ExitOK: every admitted job succeeded, or the cycle was skipped cleanly.
	ExitOK = 0

	// ExitFatal: configuration or lock storage failure.
	ExitFatal = 1

	// ExitJobFailed: at least one job failed.
	ExitJobFailed = 2

	// ExitDegraded: no failures, but some jobs were skipped or timed out.
	ExitDegraded = 3
)
