package main

import (
	"github.com/spf13/cobra"

	"jamati/internal/config"
)

type rootOptions struct {
	configPath string
	dataPath   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "jamati",
		Short:         "Weekly lecture schedule with reminders",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "path to config file")
	cmd.PersistentFlags().StringVar(&opts.dataPath, "data", "", "SQLite data file (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	cmd.AddCommand(
		newServeCmd(opts),
		newAddCmd(opts),
		newListCmd(opts),
		newSearchCmd(opts),
		newDeleteCmd(opts),
		newLangCmd(opts),
		newSummaryTimeCmd(opts),
		newNotifyCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
	)
	return cmd
}

// withApp opens the app with translations loaded, runs fn and closes it.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app) error) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()
	a.loadTranslations(cmd.Context())
	return fn(a)
}
