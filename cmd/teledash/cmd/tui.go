package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/teledash/teledash/internal/export"
	"github.com/teledash/teledash/internal/fileutil"
	"github.com/teledash/teledash/internal/tui"
)

var tuiLogFile string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive dashboard",
	Long: `Open the interactive dashboard for browsing processed and raw messages.

Navigation:
  1/2, Tab      Switch between Processed and Raw
  ↑/k, ↓/j      Move up/down
  ←/h, →/l      Previous/next page
  +/-           Change page size
  Enter         Show message details
  /             Search by channel
  d             Filter by date range (start..end)
  c             Clear filters
  r             Reload

Actions:
  f             Fetch recent messages (Raw tab)
  p             Process raw messages (Raw tab)
  e / x         Export the active table as CSV / Excel
  q             Quit

The dashboard draws on the terminal, so log output is discarded unless
--log-file is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fd := os.Stdout.Fd()
		if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
			return fmt.Errorf("tui requires a terminal; use 'teledash messages' or 'teledash raw' for scripted output")
		}

		tuiLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		if tuiLogFile != "" {
			f, err := fileutil.OpenAppend(tuiLogFile, 0600)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer f.Close()
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			tuiLogger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
		}
		logger = tuiLogger

		d, err := newDispatcher()
		if err != nil {
			return err
		}
		exporter := export.New(d, export.Options{
			Dir:                    cfg.ExportDir(),
			ProcessedHonorsFilters: cfg.Export.ProcessedHonorsFilters,
		}).WithLogger(logger)

		model := tui.New(d, exporter, tui.Options{
			Version:        Version,
			PageSize:       cfg.View.PageSize,
			SearchDebounce: cfg.SearchDebounce(),
			Context:        cmd.Context(),
			Logger:         logger,
		})
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run tui: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "append logs to this file while the dashboard runs")
}
