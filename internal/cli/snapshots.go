package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cellsync/internal/store"
)

// SnapshotsOptions holds flags for the snapshots command.
type SnapshotsOptions struct {
	*RootOptions
	Database string
	Show     string // table whose latest snapshot is printed
}

// NewSnapshotsCommand creates the snapshots command.
func NewSnapshotsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored table snapshots",
		Long: `List every snapshot in a database, or decode the latest snapshot of one
table with --show.

Example:
  cellsync snapshots --db ./budget.db
  cellsync snapshots --db ./budget.db --show sheet`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshots(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Show, "show", "", "print the cells of this table's latest snapshot")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSnapshots(opts *SnapshotsOptions, cmd *cobra.Command) error {
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

	if opts.Show != "" {
		t, info, err := st.ReadSnapshot(ctx, opts.Show)
		if errors.Is(err, store.ErrNotFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("no snapshot for table %q", opts.Show))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read snapshot", err)
		}
		rep := reportTable(opts.Show, t)
		if out.JSON() {
			return out.Success(map[string]any{"snapshot": info, "table": rep})
		}
		out.Printf("snapshot %s seq %d\n", info.Table, info.Seq)
		printTable(out, rep)
		return nil
	}

	list, err := st.ListSnapshots(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list snapshots", err)
	}
	if out.JSON() {
		if list == nil {
			list = []store.SnapshotInfo{}
		}
		return out.Success(list)
	}
	if len(list) == 0 {
		out.Printf("No snapshots found.\n")
		return nil
	}
	for _, info := range list {
		out.Printf("%-20s seq %-4d codec v%d %8d bytes\n", info.Table, info.Seq, info.CodecVersion, info.Size)
	}
	return nil
}
