package main

import (
	"github.com/spf13/cobra"

	"github.com/aatumaykin/nexcron/internal/config"
	"github.com/aatumaykin/nexcron/internal/constants"
)

var (
	configPath string
	envPath    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nexcron",
	Short: "nexcron - cron jobs without a daemon",
	Long: `nexcron runs one scheduling cycle per invocation. Call it every minute
from crontab or a systemd timer; overlapping runs coordinate through a lock
directory so each job runs at most once at a time.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := envPath
		if path == "" {
			path = constants.DefaultEnvPath
		}
		return config.LoadEnvOptional(path)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", "Path to .env file (default: ./.env)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(locksCmd)
}
