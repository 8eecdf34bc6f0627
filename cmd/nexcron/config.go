package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/nexcron/internal/config"
	"github.com/aatumaykin/nexcron/internal/constants"
	"github.com/aatumaykin/nexcron/internal/job"
	"github.com/aatumaykin/nexcron/internal/jobfile"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Validate nexcron configuration.`,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long: `Validate the configuration file and check for errors. The job file it
references is loaded and every schedule is parsed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := constants.DefaultConfigPath
		switch {
		case len(args) > 0:
			path = args[0]
		case configPath != "":
			path = configPath
		}

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		for _, key := range cfg.UnknownKeys() {
			fmt.Fprintf(cmd.ErrOrStderr(), constants.MsgConfigUnknownKey, key)
		}

		errs := cfg.Validate()
		if cfg.Jobs.File != "" {
			defs, err := jobfile.Load(cfg.Jobs.File)
			if err == nil {
				err = jobfile.Register(job.NewRegistry(), defs)
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			out := cmd.ErrOrStderr()
			for _, e := range errs {
				fmt.Fprintf(out, constants.MsgConfigInvalid, e)
			}
			return &exitError{
				code: constants.ExitFatal,
				err:  fmt.Errorf("configuration %s has %d error(s)", path, len(errs)),
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), constants.MsgConfigValid, path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
