package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cellsync/internal/store"
	"github.com/roach88/cellsync/internal/trace"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Database string
	Pass     string
	Table    string
	Listener string
	Row      int64
	Limit    int
}

// EventRecord is the JSON form of a journaled event.
type EventRecord struct {
	Pass     string         `json:"pass"`
	Seq      int64          `json:"seq"`
	Table    string         `json:"table"`
	Listener string         `json:"listener"`
	Header   []string       `json:"header"`
	Row      int64          `json:"row"`
	Old      map[string]any `json:"old"`
	New      map[string]any `json:"new"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print journaled events",
		Long: `Print events recorded by a journal for a pass, a table, or both.
--listener and --row narrow the selection further.

Example:
  cellsync events --db ./budget.db --table sheet
  cellsync events --db ./budget.db --table sheet --row 0 --limit 5
  cellsync events --db ./budget.db --pass 0190f3c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Pass, "pass", "", "pass token")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table name")
	cmd.Flags().StringVar(&opts.Listener, "listener", "", "listener name")
	cmd.Flags().Int64Var(&opts.Row, "row", 0, "row index")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 for all)")
	_ = cmd.MarkFlagRequired("db")
	cmd.MarkFlagsOneRequired("pass", "table")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}
	q := store.EventQuery{Pass: opts.Pass, Table: opts.Table, Listener: opts.Listener, Limit: opts.Limit}
	if cmd.Flags().Changed("row") {
		q.Row = &opts.Row
	}
	records, err := st.QueryEvents(ctx, q)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	if out.JSON() {
		evs := make([]EventRecord, len(records))
		for i, r := range records {
			evs[i] = EventRecord{
				Pass:     r.Pass,
				Seq:      r.Seq,
				Table:    r.Table,
				Listener: r.Listener,
				Header:   r.Header,
				Row:      r.Row,
				Old:      trace.EncodeValue(r.Old),
				New:      trace.EncodeValue(r.New),
			}
		}
		return out.Success(evs)
	}
	if len(records) == 0 {
		out.Printf("No events found.\n")
		return nil
	}
	for _, r := range records {
		out.Printf("%s #%d %s\n", r.Pass, r.Seq, r)
	}
	return nil
}

// openExisting opens a database that must already exist.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
