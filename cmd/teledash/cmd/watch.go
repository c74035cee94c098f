package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/teledash/teledash/internal/dataset"
	"github.com/teledash/teledash/internal/dispatch"
	"github.com/teledash/teledash/internal/scheduler"
	"github.com/teledash/teledash/internal/textutil"
)

var watchRunNow bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Fetch and process messages on a schedule",
	Long: `Run in the foreground and trigger ingestion on cron schedules.

Configure schedules in config.toml:
  [schedule]
  fetch_recent = "*/15 * * * *"   # every 15 minutes
  process = "0 * * * *"           # hourly
  enabled = true

Cron format: minute hour day-of-month month day-of-week
  Examples:
    */15 * * * *  = Every 15 minutes
    0 2 * * *     = 2:00 AM daily
    @hourly       = Once an hour

Use Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchRunNow, "now", false, "run every scheduled job once at startup")
}

// watchRunFunc returns the scheduler callback. Outcomes are reduced into
// store so consecutive runs see the same raw table state the dashboard would.
func watchRunFunc(d *dispatch.Dispatcher, store *dataset.Store, out io.Writer) scheduler.RunFunc {
	return func(ctx context.Context, job scheduler.Job) error {
		switch job {
		case scheduler.JobFetchRecent:
			res, err := d.Execute(ctx, store.Dispatch, d.FetchRecent())
			if err != nil {
				return apiError("fetch recent", err)
			}
			fmt.Fprintf(out, "%s  %s%s\n", time.Now().Format("15:04:05"), textutil.FormatCount(int64(res.Count)), fetchedSuffix)
		case scheduler.JobProcess:
			if _, err := d.Execute(ctx, store.Dispatch, d.ProcessMessages(nil)); err != nil {
				return apiError("process messages", err)
			}
			fmt.Fprintf(out, "%s  %s\n", time.Now().Format("15:04:05"), processedNotice)
		default:
			return fmt.Errorf("unknown job %q", job)
		}
		return nil
	}
}

// runScheduledNow triggers every scheduled job once, fetch before process.
func runScheduledNow(sched *scheduler.Scheduler) {
	for _, job := range []scheduler.Job{scheduler.JobFetchRecent, scheduler.JobProcess} {
		if !sched.IsScheduled(job) {
			continue
		}
		if err := sched.Trigger(job); err != nil {
			logger.Warn("trigger failed", "job", job, "error", err)
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !cfg.Scheduled() {
		return fmt.Errorf("no schedules configured\n\nAdd a schedule to %s:\n\n  [schedule]\n  fetch_recent = \"*/15 * * * *\"\n  process = \"0 * * * *\"\n  enabled = true", cfg.ConfigFilePath())
	}

	d, err := newDispatcher()
	if err != nil {
		return err
	}

	store := dataset.NewStore()
	unsubscribe := store.Subscribe(func(s dataset.State) {
		if s.Raw.Err != "" {
			logger.Warn("raw table request failed", "error", s.Raw.Err)
			return
		}
		logger.Debug("raw table updated", "rows", len(s.Raw.Rows), "loading", s.Raw.Loading)
	})
	defer unsubscribe()

	out := cmd.OutOrStdout()
	sched := scheduler.New(watchRunFunc(d, store, out)).WithLogger(logger)

	count, errs := sched.AddJobsFromConfig(cfg)
	for _, err := range errs {
		logger.Error("failed to schedule job", "error", err)
	}
	if count == 0 {
		return fmt.Errorf("no jobs could be scheduled")
	}

	sched.Start()

	fmt.Fprintf(out, "teledash watch started\n")
	fmt.Fprintf(out, "  API: %s\n", cfg.Remote.URL)
	for _, status := range sched.Status() {
		fmt.Fprintf(out, "  %s: %s, next run at %s\n", status.Job, status.Schedule, status.NextRun.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Press Ctrl+C to stop.")

	if watchRunNow {
		runScheduledNow(sched)
	}

	<-cmd.Context().Done()

	fmt.Fprintln(out, "\nWaiting for running jobs to complete...")
	schedCtx := sched.Stop()
	select {
	case <-schedCtx.Done():
		fmt.Fprintln(out, "Stopped.")
	case <-time.After(30 * time.Second):
		fmt.Fprintln(out, "Shutdown timed out after 30 seconds.")
	}
	return nil
}
