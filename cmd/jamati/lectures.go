package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"jamati/internal/i18n"
	"jamati/internal/lecture"
	"jamati/internal/model"
)

func newAddCmd(opts *rootOptions) *cobra.Command {
	var d struct {
		name, typ, professor, start, location, day string
	}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a lecture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				draft := model.Draft{
					Name:      d.name,
					Type:      model.LectureType(d.typ),
					Professor: d.professor,
					StartTime: d.start,
					Location:  d.location,
					Day:       model.Day(d.day),
				}
				if t, err := model.ParseLectureType(d.typ); err == nil {
					draft.Type = t
				}
				if day, err := model.ParseDay(d.day); err == nil {
					draft.Day = day
				}

				l, err := a.lectures.Add(draft)
				var verr *lecture.ValidationError
				if errors.As(err, &verr) {
					return fmt.Errorf("%s (%s)", a.resolver.T("addLectureForm.error"), strings.Join(verr.Fields, ", "))
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), l.ID)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&d.name, "name", "", "lecture name (required)")
	f.StringVar(&d.typ, "type", string(model.Theoretical), "lecture type")
	f.StringVar(&d.professor, "professor", "", "professor (optional)")
	f.StringVar(&d.start, "start", "", "start time HH:MM (required)")
	f.StringVar(&d.location, "location", "", "location (required)")
	f.StringVar(&d.day, "day", "", "day of week (required)")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the weekly schedule grouped by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				return printSchedule(cmd.OutOrStdout(), a.resolver, a.lectures.All(), asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the lectures as JSON")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search lectures by name, professor, location, type or day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				return printSchedule(cmd.OutOrStdout(), a.resolver, a.lectures.Search(args[0], a.resolver), asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the matches as JSON")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a lecture after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				id := args[0]
				if _, ok := a.lectures.Get(id); !ok {
					return fmt.Errorf("%w: %s", lecture.ErrNotFound, id)
				}
				if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), a.resolver.T("app.deleteConfirm")) {
					return nil
				}
				return a.lectures.Delete(id)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm asks prompt on out and reads a yes/no answer from in. Anything
// but an explicit yes declines.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "نعم":
		return true
	default:
		return false
	}
}

func printSchedule(w io.Writer, tr *i18n.Resolver, lectures []model.Lecture, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(lectures)
	}
	if len(lectures) == 0 {
		fmt.Fprintln(w, tr.T("app.emptySchedule"))
		return nil
	}
	for _, g := range lecture.GroupByDay(lectures) {
		if len(g.Lectures) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\n", tr.T("days."+string(g.Day)))
		for _, l := range g.Lectures {
			fmt.Fprintf(w, "  %s  %s (%s) @ %s", l.StartTime, l.Name, tr.T("lectureTypes."+string(l.Type)), l.Location)
			if l.Professor != "" {
				fmt.Fprintf(w, " - %s: %s", tr.T("lectureCard.professor"), l.Professor)
			}
			fmt.Fprintf(w, "  [%s]\n", l.ID)
		}
	}
	return nil
}
