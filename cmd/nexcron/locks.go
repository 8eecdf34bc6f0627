package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/nexcron/internal/constants"
	"github.com/aatumaykin/nexcron/internal/lock"
)

// locksCmd groups the lock directory commands.
var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "Inspect and clean the lock directory",
}

var locksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lock files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := lock.NewManager(cfg.Scheduler.LockDirectory)
		statuses, err := m.List()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(statuses) == 0 {
			fmt.Fprintf(out, constants.MsgNoLocks, m.Dir())
			return nil
		}

		fmt.Fprintf(out, constants.MsgLocksHeader, "NAME", "STATE", "PID", "EXPIRES", "OWNER")
		for _, st := range statuses {
			state := "live"
			switch {
			case st.Corrupt:
				state = "corrupt"
			case st.Stale:
				state = "stale"
			}
			if st.Lock == nil {
				fmt.Fprintf(out, constants.MsgLocksHeader, st.Name, state, "-", "-", st.Path)
				continue
			}
			owner := "dead"
			if st.OwnerAlive {
				owner = "alive"
			}
			fmt.Fprintf(out, constants.MsgLocksHeader, st.Name, state,
				strconv.Itoa(st.Lock.OwnerPID), st.Lock.ExpiresAt.Format(time.RFC3339), owner)
		}
		return nil
	},
}

var locksCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove stale and corrupt lock files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := lock.NewManager(cfg.Scheduler.LockDirectory)
		removed, err := m.CleanupStale()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), constants.MsgLocksCleaned, removed, m.Dir())
		return nil
	},
}

func init() {
	locksCmd.AddCommand(locksListCmd)
	locksCmd.AddCommand(locksCleanCmd)
}
