package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/teledash/teledash/internal/config"
	"github.com/teledash/teledash/internal/dispatch"
	"github.com/teledash/teledash/internal/remote"
)

var (
	cfgFile string
	homeDir string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "teledash",
	Short: "Dashboard for collected Telegram messages",
	Long: `teledash is a terminal client for a Telegram message collection API.

It browses processed and raw messages page by page with channel and date
filters, triggers ingestion of recent messages and processing of raw ones,
and exports whole datasets to CSV or Excel.

Run 'teledash tui' for the interactive dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		if cmd.Name() == "version" {
			return nil
		}

		// Set up logging
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		// .env files feed the environment overrides, so they load first.
		envHome := homeDir
		if envHome == "" {
			envHome = config.DefaultHome()
		}
		if err := config.LoadEnvFiles(envHome); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", cfg.ConfigFilePath(), err)
		}

		// Ensure home directory exists on first use
		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create home directory %s: %w", cfg.HomeDir, err)
		}

		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// newClient creates an API client from the loaded config.
func newClient() (*remote.Client, error) {
	client, err := remote.New(remote.Config{
		URL:           cfg.Remote.URL,
		APIKey:        cfg.Remote.APIKey,
		AllowInsecure: cfg.Remote.AllowInsecure,
		Timeout:       cfg.Timeout(),
		RateLimitQPS:  cfg.Remote.RateLimitQPS,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client.WithLogger(logger), nil
}

// newDispatcher creates a dispatcher over a fresh API client.
func newDispatcher() (*dispatch.Dispatcher, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	return dispatch.New(client).WithLogger(logger), nil
}

// apiError annotates a gateway failure for the terminal. A transport failure
// only carries the operation's default message, so its cause and the API
// address are added.
func apiError(action string, err error) error {
	var re *remote.Error
	if remote.IsTransport(err) && errors.As(err, &re) && re.Err != nil {
		return fmt.Errorf("%s: %w: %v (is the API reachable at %s?)", action, err, re.Err, cfg.Remote.URL)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.teledash/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "home directory (overrides TELEDASH_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
