package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/teledash/teledash/internal/dataset"
	"github.com/teledash/teledash/internal/dispatch"
	"github.com/teledash/teledash/internal/query"
	"github.com/teledash/teledash/internal/textutil"
)

// listFlags are the filter and paging flags shared by the list and export
// commands.
type listFlags struct {
	page     int
	pageSize int
	search   string
	dates    string
	asJSON   bool
}

func (f *listFlags) register(cmd *cobra.Command, paging bool) {
	if paging {
		cmd.Flags().IntVar(&f.page, "page", 1, "page number (1-based)")
		cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "rows per page (default: view.page_size from config)")
		cmd.Flags().BoolVar(&f.asJSON, "json", false, "output as JSON")
	}
	cmd.Flags().StringVar(&f.search, "search", "", "filter by channel name (substring)")
	cmd.Flags().StringVar(&f.dates, "dates", "", "filter by date range, start..end (either side may be empty)")
}

// descriptor builds a normalized descriptor from the flags.
func (f *listFlags) descriptor() query.Descriptor {
	size := f.pageSize
	if size <= 0 {
		size = cfg.View.PageSize
	}
	d := query.NewDescriptor(1, size).
		WithSearch(f.search).
		WithDateRange(query.ParseDateRange(f.dates))
	// Filters reset the page, so the requested page is applied last.
	return d.WithPage(f.page)
}

var (
	messagesFlags listFlags
	rawFlags      listFlags
)

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List processed messages",
	Long: `List one page of processed messages.

Examples:
  teledash messages
  teledash messages --search news --page 2 --page-size 50
  teledash messages --dates 2024-01-01..2024-03-31 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDispatcher()
		if err != nil {
			return err
		}
		return runList(cmd, d, dataset.SliceProcessed, &messagesFlags)
	},
}

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "List raw (unprocessed) messages",
	Long: `List one page of raw messages as collected from Telegram.

Examples:
  teledash raw
  teledash raw --search news --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDispatcher()
		if err != nil {
			return err
		}
		return runList(cmd, d, dataset.SliceRaw, &rawFlags)
	},
}

func runList(cmd *cobra.Command, d *dispatch.Dispatcher, table dataset.Slice, flags *listFlags) error {
	desc := flags.descriptor()
	call := d.ListMessages(desc)
	if table == dataset.SliceRaw {
		call = d.ListRawMessages(desc)
	}

	res, err := d.Execute(cmd.Context(), nil, call)
	if err != nil {
		return apiError(fmt.Sprintf("list %s messages", table), err)
	}

	out := cmd.OutOrStdout()
	if flags.asJSON {
		return outputRecordsJSON(out, desc, res)
	}

	if len(res.Messages) == 0 && len(res.RawMessages) == 0 {
		fmt.Fprintln(out, "No messages found.")
		return nil
	}
	if table == dataset.SliceRaw {
		outputRawTable(out, res.RawMessages)
	} else {
		outputMessageTable(out, res.Messages)
	}
	fmt.Fprintf(out, "\n%s\n", pageFooter(desc, res.Total))
	return nil
}

// pageFooter describes the page position. An empty table still has page 1.
func pageFooter(desc query.Descriptor, total int64) string {
	pages := max(query.PageCount(total, desc.PageSize), 1)
	return fmt.Sprintf("Page %d of %d (%d per page, %s total)",
		desc.Page, pages, desc.PageSize, textutil.FormatCount(total))
}

func outputMessageTable(out io.Writer, rows []query.Message) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tMSG ID\tDATE\tMESSAGE\tMEDIA\tYOUTUBE\tPHONE")
	fmt.Fprintln(w, "───────\t──────\t────\t───────\t─────\t───────\t─────")
	for _, m := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			textutil.Truncate(m.ChannelTitle, 24),
			m.MessageID,
			query.FormatTimestamp(m.MessageDate),
			textutil.Truncate(m.Text, 50),
			textutil.Truncate(m.MediaLabel(), 20),
			textutil.Truncate(encodedOr(m.YouTube, query.NoYouTube), 30),
			textutil.Truncate(encodedOr(m.Phone, query.NoPhone), 20),
		)
	}
	w.Flush()
}

func outputRawTable(out io.Writer, rows []query.RawMessage) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tMSG ID\tSENDER\tTIMESTAMP\tMESSAGE\tMEDIA")
	fmt.Fprintln(w, "───────\t──────\t──────\t─────────\t───────\t─────")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			textutil.Truncate(r.ChannelName, 24),
			r.MessageID,
			textutil.Truncate(r.Sender, 20),
			query.FormatTimestamp(r.Timestamp),
			textutil.Truncate(r.Text, 50),
			textutil.Truncate(r.MediaLabel(), 20),
		)
	}
	w.Flush()
}

// outputRecordsJSON prints the page with rows in the key order the API sent.
func outputRecordsJSON(out io.Writer, desc query.Descriptor, res dataset.Result) error {
	records := res.Records
	if records == nil {
		records = []query.Record{}
	}
	output := struct {
		Page     int            `json:"page"`
		PageSize int            `json:"page_size"`
		Total    int64          `json:"total"`
		Rows     []query.Record `json:"rows"`
	}{desc.Page, desc.PageSize, res.Total, records}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func encodedOr(e query.Encoded, empty string) string {
	if e.IsEmpty() {
		return empty
	}
	return e.Join(", ")
}

func init() {
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(rawCmd)
	messagesFlags.register(messagesCmd, true)
	rawFlags.register(rawCmd, true)
}
