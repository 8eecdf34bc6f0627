package constants

// CLI output used by cmd/nexcron.

// Run messages
const (
	// MsgCycleDenied is printed when another cycle holds the global lock.
	MsgCycleDenied = "cycle %s skipped: another cycle is running\n"

	// MsgCycleSkipped is printed when the resource gate refuses the cycle.
	MsgCycleSkipped = "cycle %s skipped: %s\n"

	// MsgCycleSummary is the one-line summary of a completed cycle.
	MsgCycleSummary = "cycle %s: %d job(s), %d succeeded, %d failed, %d skipped, %d timed out (%s)\n"

	// MsgCycleCleaned reports the stale-lock sweep.
	MsgCycleCleaned = "removed %d stale lock(s)\n"

	// MsgJobLine is one job result line: status, name, duration, message.
	MsgJobLine = "  %-8s %-24s %8s  %s\n"

	// MsgNoJobsDue is printed when nothing matched the current minute.
	MsgNoJobsDue = "no jobs due\n"
)

// Job listing
const (
	// MsgJobsHeader is the header of `nexcron jobs`.
	MsgJobsHeader = "%-24s %-16s %8s %8s %-5s %s\n"

	// MsgNoJobs is printed when no jobs are registered.
	MsgNoJobs = "no jobs registered\n"
)

// Lock listing
const (
	// MsgLocksHeader is the header of `nexcron locks list`.
	MsgLocksHeader = "%-32s %-8s %-8s %-25s %s\n"

	// MsgNoLocks is printed for an empty lock directory.
	MsgNoLocks = "no locks in %s\n"

	// MsgLocksCleaned reports `nexcron locks clean`.
	MsgLocksCleaned = "removed %d stale lock(s) from %s\n"
)

// Config messages
const (
	// MsgConfigValid confirms a successful validation.
	MsgConfigValid = "configuration %s is valid\n"

	// MsgConfigUnknownKey warns about a key the loader ignored.
	MsgConfigUnknownKey = "warning: unknown key %q ignored\n"

	// MsgConfigInvalid prefixes each validation error.
	MsgConfigInvalid = "  - %v\n"
)
