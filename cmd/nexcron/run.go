package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/nexcron/internal/constants"
	"github.com/aatumaykin/nexcron/internal/job"
	"github.com/aatumaykin/nexcron/internal/lock"
	"github.com/aatumaykin/nexcron/internal/logger"
	"github.com/aatumaykin/nexcron/internal/metrics"
	"github.com/aatumaykin/nexcron/internal/scheduler"
)

var (
	runJobsPath string
	runOutput   string
	runDebug    bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scheduling cycle",
	Long: `Run one scheduling cycle: take the global lock, check system load and
memory, run every due job under its own lock and sweep stale locks.

Exit status: 0 all due jobs succeeded or the cycle was skipped, 1 fatal
error, 2 a job failed, 3 jobs were skipped or timed out.`,
	Args: cobra.NoArgs,
	RunE: runHandler,
}

func runHandler(cmd *cobra.Command, args []string) error {
	if runOutput != "text" && runOutput != "json" {
		return fmt.Errorf("invalid --output %q (expected: text, json)", runOutput)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runDebug {
		cfg.Logging.Level = "debug"
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Close() }()

	locks := lock.NewManager(cfg.Scheduler.LockDirectory, lock.WithLogger(log))
	reg, err := buildRegistry(cfg, runJobsPath, locks)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	s := scheduler.New(cfg.Scheduler, reg, locks, newGuard(log),
		scheduler.WithLogger(log),
		scheduler.WithMetrics(m))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := s.RunCycle(ctx)

	if m != nil {
		if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			log.Warn("failed to write metrics textfile",
				logger.Field{Key: "path", Value: cfg.Metrics.Textfile},
				logger.Field{Key: "error", Value: werr.Error()})
		}
	}
	if err != nil {
		return err
	}

	if err := printReport(cmd.OutOrStdout(), report, runOutput); err != nil {
		return err
	}
	if code := reportExitCode(report); code != constants.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// reportExitCode maps a finished cycle to the process exit status.
func reportExitCode(report *scheduler.CycleReport) int {
	if report.State != scheduler.StateDone {
		return constants.ExitOK
	}
	sum := report.Summary()
	switch {
	case sum.Failed > 0:
		return constants.ExitJobFailed
	case sum.Skipped > 0 || sum.TimedOut > 0:
		return constants.ExitDegraded
	default:
		return constants.ExitOK
	}
}

type reportJSON struct {
	ID         string        `json:"cycle_id"`
	State      string        `json:"state"`
	Outcome    string        `json:"outcome"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DurationMS int64         `json:"duration_ms"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Cleaned    int           `json:"stale_locks_removed"`
	Summary    summaryJSON   `json:"summary"`
	Results    []*job.Result `json:"results"`
}

type summaryJSON struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	TimedOut  int `json:"timed_out"`
}

func printReport(w io.Writer, report *scheduler.CycleReport, format string) error {
	if format == "json" {
		sum := report.Summary()
		results := report.Results
		if results == nil {
			results = []*job.Result{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reportJSON{
			ID:         report.ID,
			State:      string(report.State),
			Outcome:    report.Outcome(),
			StartedAt:  report.StartedAt,
			FinishedAt: report.FinishedAt,
			DurationMS: report.Duration().Milliseconds(),
			SkipReason: report.SkipReason,
			Cleaned:    report.Cleaned,
			Summary:    summaryJSON(sum),
			Results:    results,
		})
	}

	switch report.State {
	case scheduler.StateGlobalLockDenied:
		fmt.Fprintf(w, constants.MsgCycleDenied, report.ID)
		return nil
	case scheduler.StateAdmissionDenied:
		fmt.Fprintf(w, constants.MsgCycleSkipped, report.ID, report.SkipReason)
		return nil
	}

	if len(report.Results) == 0 {
		fmt.Fprint(w, constants.MsgNoJobsDue)
	}
	for _, res := range report.Results {
		fmt.Fprintf(w, constants.MsgJobLine, res.Status(), res.JobName,
			res.Duration.Round(time.Millisecond), res.Message)
	}
	sum := report.Summary()
	fmt.Fprintf(w, constants.MsgCycleSummary, report.ID, len(report.Results),
		sum.Succeeded, sum.Failed, sum.Skipped, sum.TimedOut,
		report.Duration().Round(time.Millisecond))
	if report.Cleaned > 0 {
		fmt.Fprintf(w, constants.MsgCycleCleaned, report.Cleaned)
	}
	return nil
}

func init() {
	runCmd.Flags().StringVarP(&runJobsPath, "jobs", "j", "", "Path to job definition file (overrides config)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "text", "Output format: text or json")
	runCmd.Flags().BoolVarP(&runDebug, "debug", "d", false, "Enable debug logging")
}
