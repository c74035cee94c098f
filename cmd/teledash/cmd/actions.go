package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teledash/teledash/internal/dispatch"
	"github.com/teledash/teledash/internal/textutil"
)

// Notices printed after a successful action, matching the dashboard.
const (
	processedNotice = "Messages processed successfully!"
	fetchedSuffix   = " fetched"
)

var fetchRecentCmd = &cobra.Command{
	Use:   "fetch-recent",
	Short: "Ingest recent messages from Telegram",
	Long: `Ask the API to pull recent messages from the monitored Telegram channels
into the raw message table.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDispatcher()
		if err != nil {
			return err
		}
		return runFetchRecent(cmd, d)
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process raw messages",
	Long: `Ask the API to process every raw message: links, phone numbers and emoji
are extracted and the rows move to the processed table. The raw table is
emptied on success.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDispatcher()
		if err != nil {
			return err
		}
		return runProcess(cmd, d)
	},
}

func runFetchRecent(cmd *cobra.Command, d *dispatch.Dispatcher) error {
	res, err := d.Execute(cmd.Context(), nil, d.FetchRecent())
	if err != nil {
		return apiError("fetch recent", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), textutil.FormatCount(int64(res.Count))+fetchedSuffix)
	return nil
}

func runProcess(cmd *cobra.Command, d *dispatch.Dispatcher) error {
	if _, err := d.Execute(cmd.Context(), nil, d.ProcessMessages(nil)); err != nil {
		return apiError("process messages", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), processedNotice)
	return nil
}

func init() {
	rootCmd.AddCommand(fetchRecentCmd)
	rootCmd.AddCommand(processCmd)
}
