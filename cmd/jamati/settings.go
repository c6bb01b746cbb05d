package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jamati/internal/i18n"
	"jamati/internal/model"
	"jamati/internal/notify"
)

func newLangCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lang [en|ar|toggle]",
		Short: "Show or change the interface language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if len(args) == 1 {
					if args[0] == "toggle" {
						a.resolver.Toggle()
					} else {
						l, err := i18n.ParseLanguage(args[0])
						if err != nil {
							return err
						}
						if err := a.resolver.SetLanguage(l); err != nil {
							return err
						}
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", a.resolver.Language(), a.resolver.Dir())
				return nil
			})
		},
	}
}

func newSummaryTimeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary-time [HH:MM]",
		Short: "Show or change the daily summary time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if len(args) == 1 {
					if _, _, err := model.ParseClock(args[0]); err != nil {
						return err
					}
					a.summaryTime.Set(args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.summaryTime.Get())
				return nil
			})
		},
	}
}

func newNotifyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Manage notifications",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Request notification permission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				p, err := a.scheduler.RequestPermission(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), a.resolver.T(notify.MessageKey(p, err)))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the notification permission state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				fmt.Fprintln(cmd.OutOrStdout(), a.scheduler.Permission())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Evaluate and dispatch notifications for the current minute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				for _, n := range a.scheduler.Tick(cmd.Context()) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", n.Kind, n.Title)
				}
				return nil
			})
		},
	})
	return cmd
}
