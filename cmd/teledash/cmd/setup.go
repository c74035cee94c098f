package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/teledash/teledash/internal/config"
	"github.com/teledash/teledash/internal/remote"
	"github.com/teledash/teledash/internal/scheduler"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for first-run configuration",
	Long: `Interactive setup wizard to configure teledash for first use.

This command helps you:
  1. Point teledash at the message API and store its key
  2. Choose where exports are written
  3. Optionally schedule fetch and process runs for 'teledash watch'

The answers are written to config.toml in the teledash home directory.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

// setupAnswers holds the wizard fields as strings so huh can bind them.
type setupAnswers struct {
	URL             string
	APIKey          string
	AllowInsecure   bool
	ExportDir       string
	HonorFilters    bool
	PageSize        string
	Schedule        bool
	FetchRecentCron string
	ProcessCron     string
}

func answersFromConfig(c *config.Config) setupAnswers {
	return setupAnswers{
		URL:             c.Remote.URL,
		APIKey:          c.Remote.APIKey,
		AllowInsecure:   c.Remote.AllowInsecure,
		ExportDir:       c.Export.Dir,
		HonorFilters:    c.Export.ProcessedHonorsFilters,
		PageSize:        strconv.Itoa(c.View.PageSize),
		Schedule:        c.Schedule.Enabled,
		FetchRecentCron: c.Schedule.FetchRecent,
		ProcessCron:     c.Schedule.Process,
	}
}

// apply validates a and copies it into c. Text answers are trimmed first so
// what is validated is what gets saved.
func (a setupAnswers) apply(c *config.Config) error {
	a.URL = strings.TrimSpace(a.URL)
	a.APIKey = strings.TrimSpace(a.APIKey)
	a.ExportDir = strings.TrimSpace(a.ExportDir)
	a.PageSize = strings.TrimSpace(a.PageSize)
	a.FetchRecentCron = strings.TrimSpace(a.FetchRecentCron)
	a.ProcessCron = strings.TrimSpace(a.ProcessCron)

	if _, err := remote.New(remote.Config{URL: a.URL, AllowInsecure: a.AllowInsecure}); err != nil {
		return err
	}
	size, err := strconv.Atoi(a.PageSize)
	if err != nil || size <= 0 {
		return fmt.Errorf("page size must be a positive number, got %q", a.PageSize)
	}
	if a.Schedule {
		if err := validateOptionalCron(a.FetchRecentCron); err != nil {
			return fmt.Errorf("fetch schedule: %w", err)
		}
		if err := validateOptionalCron(a.ProcessCron); err != nil {
			return fmt.Errorf("process schedule: %w", err)
		}
	}

	c.Remote.URL = a.URL
	c.Remote.APIKey = a.APIKey
	c.Remote.AllowInsecure = a.AllowInsecure
	c.Export.Dir = a.ExportDir
	c.Export.ProcessedHonorsFilters = a.HonorFilters
	c.View.PageSize = size
	c.Schedule.Enabled = a.Schedule
	c.Schedule.FetchRecent = a.FetchRecentCron
	c.Schedule.Process = a.ProcessCron
	return nil
}

func validateOptionalCron(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	return scheduler.ValidateCronExpr(expr)
}

func setupForm(a *setupAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API URL").
				Description("Origin of the message collection API").
				Placeholder(config.DefaultAPIURL).
				Value(&a.URL).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("URL is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("API key").
				Description("Sent as X-API-Key; leave empty if the API is open").
				EchoMode(huh.EchoModePassword).
				Value(&a.APIKey),
			huh.NewConfirm().
				Title("Allow plain HTTP to non-local hosts?").
				Value(&a.AllowInsecure),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Export directory").
				Description("messages.csv and messages.xlsx are written here").
				Placeholder(".").
				Value(&a.ExportDir),
			huh.NewConfirm().
				Title("Apply dashboard filters to processed exports?").
				Value(&a.HonorFilters),
			huh.NewSelect[string]().
				Title("Default page size").
				Options(huh.NewOptions("10", "20", "50", "100")...).
				Value(&a.PageSize),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Schedule fetch and process runs for 'teledash watch'?").
				Value(&a.Schedule),
			huh.NewInput().
				Title("Fetch schedule (cron)").
				Placeholder("*/15 * * * *").
				Value(&a.FetchRecentCron).
				Validate(validateOptionalCron),
			huh.NewInput().
				Title("Process schedule (cron)").
				Placeholder("0 * * * *").
				Value(&a.ProcessCron).
				Validate(validateOptionalCron),
		),
	)
}

func runSetup(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Welcome to teledash setup!")
	fmt.Fprintln(out)

	answers := answersFromConfig(cfg)
	if err := setupForm(&answers).RunWithContext(cmd.Context()); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(out, "Setup cancelled, nothing written.")
			return nil
		}
		return fmt.Errorf("setup form: %w", err)
	}

	if err := answers.apply(cfg); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(out, "Configuration saved to %s\n", cfg.ConfigFilePath())
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  teledash tui        Open the dashboard")
	if cfg.Scheduled() {
		fmt.Fprintln(out, "  teledash watch      Run the configured schedules")
	}
	return nil
}
