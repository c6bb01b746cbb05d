package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appLog "jamati/internal/log"
	"jamati/internal/model"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schedule page and API and run the notification scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				a.cfg.Listen = listen
			}

			appLog.Info("jamati starting",
				"version", version,
				"listen", a.cfg.Listen,
				"timezone", a.cfg.Location().String(),
				"notifier", a.cfg.Notifier.Kind,
			)
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

// serve runs the HTTP server and the scheduler until ctx is canceled.
// Translations load in the background; the page answers "Loading..." until
// they are ready.
func serve(ctx context.Context, a *app) error {
	a.lectures.OnChange(func(ls []model.Lecture) {
		appLog.Debug("lecture collection changed", "count", len(ls))
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.loadTranslations(gctx)
		appLog.Info("translations loaded", "lang", a.resolver.Language())
		return nil
	})
	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	g.Go(func() error {
		return a.server().ListenAndServe(gctx)
	})

	err := g.Wait()
	appLog.Info("jamati exiting")
	return err
}
