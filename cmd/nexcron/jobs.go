package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/nexcron/internal/constants"
	"github.com/aatumaykin/nexcron/internal/lock"
)

var (
	jobsAt       string
	jobsJobsPath string
)

// jobsCmd lists registered jobs with their next run.
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List registered jobs",
	Long:  `List every registered job with its schedule, priority, timeout, whether it is due and its next run.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		at := time.Now()
		if jobsAt != "" {
			parsed, err := time.Parse(time.RFC3339, jobsAt)
			if err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
			at = parsed
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := buildRegistry(cfg, jobsJobsPath, lock.NewManager(cfg.Scheduler.LockDirectory))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if reg.Len() == 0 {
			fmt.Fprint(out, constants.MsgNoJobs)
			return nil
		}

		fmt.Fprintf(out, constants.MsgJobsHeader, "NAME", "SCHEDULE", "PRIORITY", "TIMEOUT", "DUE", "NEXT")
		for _, d := range reg.All() {
			due := "no"
			next := d.Next(at).Format(time.RFC3339)
			switch {
			case !d.Enabled:
				due = "off"
				next = "-"
			case d.Due(at):
				due = "yes"
			}
			timeout := d.EffectiveTimeout(cfg.Scheduler.DefaultJobTimeoutDuration())
			fmt.Fprintf(out, constants.MsgJobsHeader, d.Name, d.Schedule, fmt.Sprint(d.Priority), timeout, due, next)
		}
		return nil
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsAt, "at", "", "Evaluate schedules at this RFC3339 time (default: now)")
	jobsCmd.Flags().StringVarP(&jobsJobsPath, "jobs", "j", "", "Path to job definition file (overrides config)")
}
