package cmd

import (
	"fmt"
	"os"

	"github.com/cwarden/skuld/internal/store"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var output string

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the events file as iCalendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return st.ExportICS(cmd.OutOrStdout())
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := st.ExportICS(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}

	exportCmd.Flags().StringVarP(&output, "output", "o", "", "File to write (default: stdout)")
	return exportCmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.ics>",
		Short: "Merge an iCalendar file into the events file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			if err := importFile(st, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s into %s\n", args[0], st.Path())
			return nil
		},
	}
}

func importFile(st *store.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := st.ImportICS(f); err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}
	return nil
}
