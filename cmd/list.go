package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
	"github.com/cwarden/skuld/internal/layout"
	"github.com/cwarden/skuld/internal/parser"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var from, to string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List events and exit",
		Long: `List the events between two dates, one day at a time, and exit.
Dates accept the same expressions as quick add: today, next friday,
2025-03-05, in 2 weeks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd, from, to)
		},
	}

	listCmd.Flags().StringVar(&from, "from", "today", "First day to list")
	listCmd.Flags().StringVar(&to, "to", "", "Last day to list (default: same as --from)")
	return listCmd
}

func (a *app) runList(cmd *cobra.Command, from, to string) error {
	p := parser.New(time.Local)
	first, err := p.ParseDate(from)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	last := first
	if to != "" {
		if last, err = p.ParseDate(to); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}
	if last.Before(first) {
		return fmt.Errorf("--to %s is before --from %s", last.Format("2006-01-02"), first.Format("2006-01-02"))
	}

	st, err := a.openStore()
	if err != nil {
		return err
	}
	events, err := st.QueryEventsOverlapping(cal.Range{Start: first, End: datemath.AddCalendarDays(last, 1)})
	if err != nil {
		return fmt.Errorf("error getting events: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, d := range datemath.DaysInclusive(first, last) {
		fmt.Fprintf(out, "Events for %s:\n", d.Format(a.cfg.DateFormat))

		day := cal.Range{Start: d, End: datemath.AddCalendarDays(d, 1)}
		var onDay []cal.Event
		for _, ev := range events {
			if ev.Span().Overlaps(day) {
				onDay = append(onDay, ev)
			}
		}
		if len(onDay) == 0 {
			fmt.Fprintln(out, "  No events found.")
			continue
		}

		placements := layout.Assign(onDay, layout.Options{})
		sort.SliceStable(placements, func(i, j int) bool {
			return placements[i].Event.Start.Before(placements[j].Event.Start)
		})
		for _, pl := range placements {
			ev := pl.Event
			timeStr := "All day"
			if !ev.AllDay {
				timeStr = ev.Start.Format(a.cfg.TimeFormat) + "-" + ev.End.Format(a.cfg.TimeFormat)
			}

			overlap := ""
			if pl.Columns > 1 {
				overlap = fmt.Sprintf(" [%d/%d]", pl.Column+1, pl.Columns)
			}
			fmt.Fprintf(out, "  %-11s %s%s  (%s)\n", timeStr, ev.Title, overlap, ev.ID)
		}
	}
	return nil
}
