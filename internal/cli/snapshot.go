package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/render"
	"github.com/mvp-joe/cbind/internal/snapshot"
)

var (
	snapshotRun    string
	snapshotFormat string
	snapshotKeep   int
)

// snapshotCmd groups the snapshot subcommands
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect and maintain snapshot databases",
	Long: `Snapshots store the globals of earlier runs by declaration shape. Later runs
load them as builtins so shared declarations keep their bound names.`,
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show [db]",
	Short: "List the runs of a snapshot, or the globals of one run",
	Long: `Show lists the runs stored in a snapshot database, newest first. With --run,
it lists the globals saved by that run. The database defaults to snapshot.save
from the project configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSnapshotShow,
}

var snapshotPruneCmd = &cobra.Command{
	Use:   "prune [db]",
	Short: "Delete all but the newest runs of a snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSnapshotPrune,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotPruneCmd)

	snapshotShowCmd.Flags().StringVar(&snapshotRun, "run", "", "Show the globals of one run")
	snapshotShowCmd.Flags().StringVarP(&snapshotFormat, "format", "f", "text", "Output format: json, yaml or text")
	snapshotPruneCmd.Flags().IntVar(&snapshotKeep, "keep", 0, "Runs to keep (default from config)")
}

func snapshotPath(p *project, args []string) (string, error) {
	if len(args) > 0 {
		return p.path(args[0]), nil
	}
	if p.cfg.Snapshot.Save == "" {
		return "", fmt.Errorf("no snapshot database given and snapshot.save is not configured")
	}
	return p.cfg.Snapshot.Save, nil
}

func openProjectSnapshot(args []string) (*project, *snapshot.Store, error) {
	root, err := resolveProjectDir()
	if err != nil {
		return nil, nil, err
	}
	p, err := loadProject(root, verbose)
	if err != nil {
		return nil, nil, err
	}
	path, err := snapshotPath(p, args)
	if err != nil {
		return nil, nil, err
	}
	store, err := snapshot.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return p, store, nil
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	_, store, err := openProjectSnapshot(args)
	if err != nil {
		return err
	}
	defer store.Close()

	format, err := render.ParseFormat(snapshotFormat)
	if err != nil {
		return err
	}
	return executeSnapshotShow(context.Background(), store, snapshotRun, format, cmd.OutOrStdout())
}

func executeSnapshotShow(ctx context.Context, store *snapshot.Store, runID string, format render.Format, out io.Writer) error {
	if runID == "" {
		runs, err := store.Runs(ctx)
		if err != nil {
			return err
		}
		if format != render.Text {
			return render.WriteValue(out, format, runs)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tMODULE\tSOURCE\tGLOBALS\tCREATED")
		for _, run := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", run.ID, run.Module, run.Source, run.Globals, run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	}

	entries, err := store.Entries(ctx, runID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("run %s not found or empty", runID)
	}
	if format != render.Text {
		return render.WriteValue(out, format, entries)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVARIANT\tSHAPE\tTYPE")
	for _, e := range entries {
		typ := "-"
		if e.Type != nil {
			typ = cdecl.Format(e.Type, nil)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Variant, e.Shape, typ)
	}
	return tw.Flush()
}

func runSnapshotPrune(cmd *cobra.Command, args []string) error {
	p, store, err := openProjectSnapshot(args)
	if err != nil {
		return err
	}
	defer store.Close()

	keep := snapshotKeep
	if keep <= 0 {
		keep = p.cfg.Snapshot.Keep
	}
	if keep <= 0 {
		return fmt.Errorf("nothing to prune: keep is 0 (all runs are kept)")
	}
	n, err := store.Prune(context.Background(), keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d runs, kept the newest %d\n", n, keep)
	return nil
}
