package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"jamati/internal/capture"
	"jamati/internal/ics"
	"jamati/internal/lecture"
	appLog "jamati/internal/log"
	"jamati/internal/model"
	"jamati/internal/web"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the schedule as iCalendar or PNG",
	}

	var icsOut string
	icsCmd := &cobra.Command{
		Use:   "ics",
		Short: "Write the schedule as an iCalendar feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				body, err := ics.Export(a.lectures.All(), ics.ExportConfig{
					From:           time.Now().In(a.cfg.Location()),
					Duration:       a.cfg.LectureDuration,
					CalendarName:   a.resolver.T("header.title"),
					ProfessorLabel: a.resolver.T("lectureCard.professor"),
				})
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), icsOut, []byte(body))
			})
		},
	}
	icsCmd.Flags().StringVarP(&icsOut, "output", "o", "-", "output file, - for stdout")

	var png struct {
		out           string
		url           string
		width, height int
	}
	pngCmd := &cobra.Command{
		Use:   "png",
		Short: "Capture the rendered schedule page with headless Chromium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			capOpts := capture.Options{
				OutputPath: png.out,
				URL:        png.url,
				Width:      png.width,
				Height:     png.height,
			}
			if capOpts.URL != "" {
				return capture.SchedulePNG(cmd.Context(), capOpts)
			}
			return withApp(cmd, opts, func(a *app) error {
				return captureLocal(cmd.Context(), a, capOpts)
			})
		},
	}
	pngCmd.Flags().StringVarP(&png.out, "output", "o", "schedule.png", "output PNG path")
	pngCmd.Flags().StringVar(&png.url, "url", "", "capture a running server instead of a private one")
	pngCmd.Flags().IntVar(&png.width, "width", capture.DefaultWidth, "viewport width")
	pngCmd.Flags().IntVar(&png.height, "height", capture.DefaultHeight, "viewport height")

	cmd.AddCommand(icsCmd, pngCmd)
	return cmd
}

// captureLocal serves the schedule on a loopback port without auth for the
// duration of one capture.
func captureLocal(ctx context.Context, a *app, opts capture.Options) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	srv := a.server(web.WithoutGreeting())

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln, srv.Routes()) }()

	opts.URL = "http://" + ln.Addr().String() + "/"
	capErr := capture.SchedulePNG(ctx, opts)
	cancel()
	return errors.Join(capErr, <-done)
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import lectures",
	}
	var replace bool
	icsCmd := &cobra.Command{
		Use:   "ics FILE",
		Short: "Add lectures from an iCalendar file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				in, closeIn, err := openInput(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
				defer closeIn()

				drafts, err := ics.Import(in, a.cfg.Location())
				if err != nil {
					return err
				}
				valid := make([]model.Draft, 0, len(drafts))
				rejected := 0
				for _, d := range drafts {
					var verr *lecture.ValidationError
					if err := lecture.Validate(d); errors.As(err, &verr) {
						appLog.Warn("import: draft rejected", "name", d.Name, "fields", fmt.Sprint(verr.Fields))
						rejected++
						continue
					} else if err != nil {
						return err
					}
					valid = append(valid, d)
				}

				// The current schedule is only cleared once there is
				// something valid to put in its place.
				if replace {
					if len(valid) == 0 {
						return fmt.Errorf("import: no valid lectures found (%d rejected); keeping the current schedule", rejected)
					}
					a.lectures.Replace([]model.Lecture{})
				}
				added := 0
				for _, d := range valid {
					if _, err := a.lectures.Add(d); err != nil {
						return err
					}
					added++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d lecture(s), rejected %d\n", added, rejected)
				return nil
			})
		},
	}
	icsCmd.Flags().BoolVar(&replace, "replace", false, "remove all current lectures before importing")
	cmd.AddCommand(icsCmd)
	return cmd
}

func openInput(stdin io.Reader, path string) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
