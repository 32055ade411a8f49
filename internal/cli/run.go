package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/cellsync/internal/store"
	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/workbook"
)

// JournalName is the listener name used for journaled events.
const JournalName = "journal"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunReport is the result of applying a workbook.
type RunReport struct {
	Tables    []TableReport        `json:"tables"`
	Links     int                  `json:"links"`
	Snapshots []store.SnapshotInfo `json:"snapshots,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <workbook-dir>",
		Short: "Load a workbook and print its tables",
		Long: `Compile the CUE workbook in a directory, seed its tables, bind its links,
and print the resulting cells.

With --db, every table is journaled while the workbook is applied and a
snapshot of each table is stored afterwards.

Example:
  cellsync run ./budget
  cellsync run ./budget --db ./budget.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkbook(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for journal and snapshots")

	return cmd
}

func runWorkbook(opts *RunOptions, dir string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	wb, err := workbook.Load(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load workbook", err)
	}
	logger.Debug("workbook compiled", "dir", dir, "tables", len(wb.Tables))

	reg := table.NewRegistry(
		table.WithLogger(logger),
		table.WithPassTokens(table.UUIDv7Generator{}),
	)

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		for _, spec := range wb.Tables {
			j, err := store.NewJournal(ctx, st, reg.Table(spec.Name), JournalName)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to attach journal", err)
			}
			defer j.Close()
		}
	}

	links, err := wb.Apply(ctx, reg)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to apply workbook", err)
	}

	report := RunReport{Links: len(links)}
	for _, spec := range wb.Tables {
		t := reg.Table(spec.Name)
		report.Tables = append(report.Tables, reportTable(spec.Name, t))
		if st == nil {
			continue
		}
		info, err := st.WriteSnapshot(ctx, spec.Name, t)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to store snapshot", err)
		}
		logger.Info("snapshot stored", "table", spec.Name, "seq", info.Seq, "bytes", info.Size)
		report.Snapshots = append(report.Snapshots, info)
	}

	if out.JSON() {
		return out.Success(report)
	}
	for _, rep := range report.Tables {
		printTable(out, rep)
	}
	out.Printf("%d links bound\n", report.Links)
	for _, info := range report.Snapshots {
		out.Printf("snapshot %s seq %d (%d bytes)\n", info.Table, info.Seq, info.Size)
	}
	return nil
}
