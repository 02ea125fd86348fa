package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/cwarden/skuld/internal/parser"
	"github.com/spf13/cobra"
)

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <description>",
		Short: "Add an event from a quick-add description",
		Long: `Add an event described in plain words: an optional date, an optional time
or time range, and a title. Without a time the event lasts all day.`,
		Example: `  skuld add tomorrow 2pm-3pm dentist
  skuld add 2025-03-14 offsite`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := parser.New(time.Local)
			ev, err := p.ParseEvent(strings.Join(args, " "))
			if err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			added, err := st.Add(ev)
			if err != nil {
				return fmt.Errorf("failed to add event: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %q (%s)\n", added.Title, added.ID)
			return nil
		},
	}
}
