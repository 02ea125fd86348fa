package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/clock"
	"github.com/cwarden/skuld/internal/datemath"
	"github.com/cwarden/skuld/internal/edgenav"
	"github.com/cwarden/skuld/internal/gesture"
	"github.com/cwarden/skuld/internal/interaction"
	"github.com/spf13/cobra"
)

// fixedPage is a navigation host that never turns the page.
type fixedPage struct {
	r cal.Range
}

func (p fixedPage) Navigate(edgenav.Direction) bool { return false }
func (p fixedPage) PageRange() cal.Range            { return p.r }
func (p fixedPage) AfterNextRender(fn func())       { fn() }
func (p fixedPage) SetUserPaging(bool)              {}

func newMoveCmd(a *app) *cobra.Command {
	var (
		days  int
		slots int
		edge  string
	)

	moveCmd := &cobra.Command{
		Use:   "move <event-id>",
		Short: "Move or resize an event",
		Long: `Move an event by whole days or by time slots, or move only its start or end
with --edge. The result is checked against blocked days and date bounds just
like a drag in the calendar. Moving one occurrence of a recurring event
reschedules that occurrence only.`,
		Example: `  skuld move standup@2025-03-05 --slots 2
  skuld move offsite --days 7
  skuld move offsite --days 1 --edge end`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMove(cmd, args[0], days, slots, edge)
		},
	}

	moveCmd.Flags().IntVar(&days, "days", 0, "Days to move by (negative moves earlier)")
	moveCmd.Flags().IntVar(&slots, "slots", 0, "Time slots to move by")
	moveCmd.Flags().StringVar(&edge, "edge", "", "Move only the start or end edge")
	moveCmd.MarkFlagsMutuallyExclusive("days", "slots")
	return moveCmd
}

func (a *app) runMove(cmd *cobra.Command, id string, days, slots int, edgeName string) error {
	if days == 0 && slots == 0 {
		return errors.New("nothing to do: give --days or --slots")
	}

	st, err := a.openStore()
	if err != nil {
		return err
	}
	ev, err := st.Get(id)
	if err != nil {
		return err
	}

	granularity, steps := gesture.Days, days
	if slots != 0 {
		if ev.AllDay {
			return fmt.Errorf("%s is an all-day event: move it with --days", id)
		}
		granularity, steps = gesture.Slots, slots
	}

	day := datemath.StartOfDay(ev.Start)
	page := fixedPage{r: cal.Range{Start: day, End: datemath.AddCalendarDays(day, 1)}}
	geom := &gesture.Grid{First: day, Rows: 1, CellWidth: 1, CellHeight: 1}

	machine := interaction.New(interaction.WithLogger(a.log))
	ctl := gesture.New(machine, clock.NewManual(time.Now()), geom, page, st, a.cfg.EngineOptions(granularity, a.log))

	switch edgeName {
	case "":
		err = ctl.StartKeyboardDrag(ev)
	case "start":
		err = ctl.StartKeyboardResize(ev, interaction.EdgeStart)
	case "end":
		err = ctl.StartKeyboardResize(ev, interaction.EdgeEnd)
	default:
		return fmt.Errorf("invalid --edge %q: want start or end", edgeName)
	}
	if err != nil {
		return err
	}
	if err := ctl.Nudge(steps); err != nil {
		ctl.Cancel()
		return err
	}

	verdict := ctl.Verdict()
	outcome, err := ctl.Commit()
	if err != nil {
		return err
	}
	if !outcome.Committed {
		return fmt.Errorf("%s not moved: %s", id, verdict.Reason)
	}

	out := cmd.OutOrStdout()
	moved := outcome.Event
	when := moved.Start.Format(a.cfg.DateFormat)
	if !moved.AllDay {
		when += " " + moved.Start.Format(a.cfg.TimeFormat) + "-" + moved.End.Format(a.cfg.TimeFormat)
	}
	if outcome.Exception != nil {
		fmt.Fprintf(out, "Moved this occurrence of %q to %s\n", moved.Title, when)
	} else {
		fmt.Fprintf(out, "Moved %q to %s\n", moved.Title, when)
	}
	return nil
}
