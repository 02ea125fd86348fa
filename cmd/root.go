package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cwarden/skuld/internal/config"
	"github.com/cwarden/skuld/internal/store"
	"github.com/cwarden/skuld/internal/ui"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"
)

// app carries the state shared by every command: flags, the loaded
// configuration and the logger.
type app struct {
	cfgFile    string
	eventsFile string
	logLevel   string
	logFile    string

	cfg     *config.Config
	log     *slog.Logger
	logSink io.Closer
}

// NewRootCmd builds the skuld command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "skuld",
		Short: "A terminal calendar with drag-and-drop rescheduling",
		Long: `Skuld shows an events file as a month grid or a day timeline. Events can be
moved and resized with the mouse or the keyboard; holding a drag at the edge
of the calendar turns the page.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: a.runTUI,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "Config file (default: search the usual locations)")
	flags.StringVarP(&a.eventsFile, "file", "f", "", "Events file to use instead of the configured one")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&a.logFile, "log-file", "", "Write logs to this file")

	rootCmd.AddCommand(
		newListCmd(a),
		newMoveCmd(a),
		newAddCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) init(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		a.cfg = config.DefaultConfig()
		if err := a.cfg.LoadFile(a.cfgFile); err != nil {
			return fmt.Errorf("failed to load config %s: %w", a.cfgFile, err)
		}
	} else {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		a.cfg = cfg
	}
	if a.eventsFile != "" {
		a.cfg.EventsFile = a.eventsFile
	}

	level := a.cfg.LogLevel
	if a.logLevel != "" {
		level = parseLevel(a.logLevel)
	}

	// The TUI owns the terminal, so it only logs when given a file.
	var out io.Writer = cmd.ErrOrStderr()
	switch {
	case a.logFile != "":
		f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.logSink = f
		out = f
	case cmd.Parent() == nil:
		out = io.Discard
	}
	a.log = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) close() {
	if a.logSink != nil {
		a.logSink.Close()
		a.logSink = nil
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(a.cfg.EventsFile, store.WithLogger(a.log))
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	return st, nil
}

func (a *app) runTUI(cmd *cobra.Command, args []string) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}

	if a.cfg.ICSFile != "" {
		if err := importFile(st, a.cfg.ICSFile); err != nil {
			a.log.Warn("calendar import failed", "file", a.cfg.ICSFile, "error", err)
		}
	}

	model := ui.NewModel(a.cfg, st, ui.WithLogger(a.log))
	defer model.Close()
	if a.cfg.AutoRefresh {
		if err := model.Watch(); err != nil {
			a.log.Warn("not watching events file", "error", err)
		}
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
